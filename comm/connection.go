package comm

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Structs

// Client is the typed client side of the
// orset.Replication gRPC service.
type Client struct {
	cc grpc.ClientConnInterface
}

// Functions

// Dial opens a connection to the replica listening
// at addr. Callers close the returned connection.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {

	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to replica at %s", addr)
	}

	return conn, nil
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, out interface{}) error {
	return c.cc.Invoke(ctx, ("/" + serviceName + "/" + method), in, out)
}

// Push sends m downstream to be merged.
func (c *Client) Push(ctx context.Context, m *Message) error {

	data, err := EncodeMessage(m)
	if err != nil {
		return err
	}

	return c.invoke(ctx, "Push", wrapperspb.Bytes(data), new(emptypb.Empty))
}

// Pull fetches the complete state of the replica.
func (c *Client) Pull(ctx context.Context) (*Message, error) {

	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "Pull", new(emptypb.Empty), out); err != nil {
		return nil, err
	}

	return DecodeMessage(out.GetValue())
}

// Add inserts elem at the replica and
// returns the tag it was minted under.
func (c *Client) Add(ctx context.Context, elem string) (int64, error) {

	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, "Add", wrapperspb.String(elem), out); err != nil {
		return 0, err
	}

	return out.GetValue(), nil
}

// Remove removes elem at the replica.
func (c *Client) Remove(ctx context.Context, elem string) error {
	return c.invoke(ctx, "Remove", wrapperspb.String(elem), new(emptypb.Empty))
}

// Contains asks the replica whether elem is a member.
func (c *Client) Contains(ctx context.Context, elem string) (bool, error) {

	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, "Contains", wrapperspb.String(elem), out); err != nil {
		return false, err
	}

	return out.GetValue(), nil
}

// List returns the rendered members of the replica.
func (c *Client) List(ctx context.Context) (string, error) {

	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "List", new(emptypb.Empty), out); err != nil {
		return "", err
	}

	return out.GetValue(), nil
}
