package comm

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-pluto/orset/crdt"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Variables

// ErrNotPersisted is wrapped by Replica implementations
// when an operation took effect in memory but could not
// be written to stable storage. The operation counts as
// done and will be replicated.
var ErrNotPersisted = errors.New("operation applied but replica state could not be persisted")

// Interfaces

// Replica is what the receiver needs from
// the local replica it serves.
type Replica interface {
	Add(elem string) (crdt.Tag, error)
	Remove(elem string) error
	Contains(elem string) bool
	String() string
	Merge(msg *Message) error
	Snapshot() *Message
}

// Structs

// Receiver accepts incoming synchronization
// and client requests for one replica.
type Receiver struct {
	logger    log.Logger
	replica   Replica
	observers []func(*Message)
}

// Functions

// NewReceiver returns a receiver serving replica.
// Every successfully merged message is handed to
// all observers afterwards.
func NewReceiver(logger log.Logger, replica Replica, observers ...func(*Message)) *Receiver {

	return &Receiver{
		logger:    logger,
		replica:   replica,
		observers: observers,
	}
}

// warnNotPersisted reports an operation that
// succeeded without reaching stable storage.
func (recv *Receiver) warnNotPersisted(method string, err error) {

	level.Warn(recv.logger).Log(
		"msg", "operation applied but not persisted",
		"method", method,
		"err", err,
	)
}

// Push decodes and merges a downstream message.
func (recv *Receiver) Push(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {

	msg, err := DecodeMessage(in.GetValue())
	if err != nil {
		level.Warn(recv.logger).Log(
			"msg", "discarding malformed sync message",
			"err", err,
		)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := recv.replica.Merge(msg); err != nil {

		if !errors.Is(err, ErrNotPersisted) {
			return nil, status.Errorf(codes.Internal, "merging state of %s failed: %v", msg.Sender, err)
		}

		recv.warnNotPersisted("PUSH", err)
	}

	for _, observe := range recv.observers {
		observe(msg)
	}

	return &emptypb.Empty{}, nil
}

// Pull returns the encoded state of the replica.
func (recv *Receiver) Pull(ctx context.Context, in *emptypb.Empty) (*wrapperspb.BytesValue, error) {

	data, err := EncodeMessage(recv.replica.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return wrapperspb.Bytes(data), nil
}

// Add inserts an element under a fresh tag.
func (recv *Receiver) Add(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {

	tag, err := recv.replica.Add(in.GetValue())
	if err != nil {

		if !errors.Is(err, ErrNotPersisted) {
			return nil, status.Error(codes.Internal, err.Error())
		}

		recv.warnNotPersisted("ADD", err)
	}

	return wrapperspb.Int64(tag), nil
}

// Remove tombstones all observed tags of an element.
func (recv *Receiver) Remove(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {

	if err := recv.replica.Remove(in.GetValue()); err != nil {

		if !errors.Is(err, ErrNotPersisted) {
			return nil, status.Error(codes.Internal, err.Error())
		}

		recv.warnNotPersisted("REMOVE", err)
	}

	return &emptypb.Empty{}, nil
}

// Contains reports membership of an element.
func (recv *Receiver) Contains(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(recv.replica.Contains(in.GetValue())), nil
}

// List renders the current members.
func (recv *Receiver) List(ctx context.Context, in *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(recv.replica.String()), nil
}
