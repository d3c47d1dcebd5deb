package comm

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-pluto/orset/crdt"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Structs

// memReplica is a minimal in-memory Replica.
type memReplica struct {
	lock   sync.Mutex
	name   string
	set    *crdt.ORSet[string]
	clock  VClock
	next   crdt.Tag
	merges int

	// persistErr is returned after an
	// operation has been applied.
	persistErr error
}

func newMemReplica(name string, firstTag crdt.Tag) *memReplica {

	return &memReplica{
		name:  name,
		set:   crdt.InitORSet[string](),
		clock: make(VClock),
		next:  firstTag,
	}
}

func (r *memReplica) Add(elem string) (crdt.Tag, error) {

	r.lock.Lock()
	defer r.lock.Unlock()

	r.next++
	r.set.Add(elem, r.next)
	r.clock.Inc(r.name)

	return r.next, r.persistErr
}

func (r *memReplica) Remove(elem string) error {

	r.lock.Lock()
	defer r.lock.Unlock()

	r.set.Remove(elem)
	r.clock.Inc(r.name)

	return r.persistErr
}

func (r *memReplica) Contains(elem string) bool {

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.set.Contains(elem)
}

func (r *memReplica) String() string {

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.set.String()
}

func (r *memReplica) Merge(msg *Message) error {

	r.lock.Lock()
	defer r.lock.Unlock()

	r.set.Merge(msg.Set())
	r.clock.Merge(msg.VClock)
	r.merges++

	return r.persistErr
}

func (r *memReplica) Snapshot() *Message {

	r.lock.Lock()
	defer r.lock.Unlock()

	return &Message{
		Sender: r.name,
		VClock: r.clock.Copy(),
		State:  r.set.State(),
	}
}

func (r *memReplica) mergeCount() int {

	r.lock.Lock()
	defer r.lock.Unlock()

	return r.merges
}

// network routes dial targets to in-memory listeners.
type network struct {
	listeners map[string]*bufconn.Listener
}

func (n *network) dialOptions() []grpc.DialOption {

	dialer := func(ctx context.Context, addr string) (net.Conn, error) {

		lis, found := n.listeners[addr]
		if !found {
			return nil, errors.New("connection refused")
		}

		return lis.DialContext(ctx)
	}

	return []grpc.DialOption{
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// serve starts a gRPC receiver for replica under addr.
func (n *network) serve(t *testing.T, addr string, replica Replica, observers ...func(*Message)) {

	lis := bufconn.Listen(1024 * 1024)
	n.listeners[addr] = lis

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))

	srv := grpc.NewServer(ReceiverOptions(nil)...)
	RegisterReplicationServer(srv, NewReceiver(logger, replica, observers...))

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
}

// Functions

func TestClientAgainstReceiver(t *testing.T) {

	nw := &network{listeners: make(map[string]*bufconn.Listener)}
	r := newMemReplica("replica-1", 0)
	nw.serve(t, "replica-1", r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, "replica-1", nw.dialOptions()...)
	require.NoError(t, err)
	defer conn.Close()

	client := NewClient(conn)

	tag, err := client.Add(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag)

	_, err = client.Add(ctx, "drafts")
	require.NoError(t, err)

	ok, err := client.Contains(ctx, "inbox")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.Remove(ctx, "inbox"))

	ok, err = client.Contains(ctx, "inbox")
	require.NoError(t, err)
	assert.False(t, ok)

	rendered, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{drafts}", rendered)

	msg, err := client.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, "replica-1", msg.Sender)
	assert.Equal(t, VClock{"replica-1": 3}, msg.VClock)
	assert.Equal(t, []string{"drafts"}, msg.Set().Elements())

	// Malformed pushes are rejected.
	err = conn.Invoke(ctx, "/orset.Replication/Push", wrapperspb.Bytes([]byte("garbage")), new(emptypb.Empty))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSenderConverges(t *testing.T) {

	nw := &network{listeners: make(map[string]*bufconn.Listener)}
	logger := log.NewNopLogger()

	r1 := newMemReplica("replica-1", 100)
	r2 := newMemReplica("replica-2", 200)

	sender1 := NewSender(logger, r1, SenderConfig{
		Name:        "replica-1",
		Peers:       map[string]string{"replica-2": "replica-2"},
		Interval:    time.Second,
		DialOptions: nw.dialOptions(),
	})
	defer sender1.Close()

	nw.serve(t, "replica-1", r1, sender1.Acknowledge)
	nw.serve(t, "replica-2", r2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r1.Add("x")
	require.NoError(t, err)
	_, err = r2.Add("y")
	require.NoError(t, err)

	// First round delivers the state of replica-1.
	assert.Equal(t, 0, sender1.SyncOnce(ctx))
	assert.True(t, r2.Contains("x"))
	assert.Equal(t, 1, r2.mergeCount())

	// Nothing changed locally, nothing is sent.
	assert.Equal(t, 0, sender1.SyncOnce(ctx))
	assert.Equal(t, 1, r2.mergeCount())

	// replica-2 pushes its merged state back.
	conn, err := Dial(ctx, "replica-1", nw.dialOptions()...)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, NewClient(conn).Push(ctx, r2.Snapshot()))

	assert.True(t, r1.Contains("y"))
	assert.Equal(t, r1.Snapshot().State, r2.Snapshot().State)

	// replica-2 already holds everything replica-1 knows.
	assert.Equal(t, 0, sender1.SyncOnce(ctx))
	assert.Equal(t, 1, r2.mergeCount())

	// A local change triggers the next push again.
	require.NoError(t, r1.Remove("x"))
	assert.Equal(t, 0, sender1.SyncOnce(ctx))
	assert.Equal(t, 2, r2.mergeCount())
	assert.False(t, r2.Contains("x"))
}

func TestSenderReportsUnreachablePeer(t *testing.T) {

	nw := &network{listeners: make(map[string]*bufconn.Listener)}

	r1 := newMemReplica("replica-1", 0)
	_, err := r1.Add("x")
	require.NoError(t, err)

	sender := NewSender(log.NewNopLogger(), r1, SenderConfig{
		Name:        "replica-1",
		Peers:       map[string]string{"replica-9": "replica-9"},
		Interval:    200 * time.Millisecond,
		DialOptions: nw.dialOptions(),
	})
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Equal(t, 1, sender.SyncOnce(ctx))
}

func TestSenderRunStopsOnCancel(t *testing.T) {

	r1 := newMemReplica("replica-1", 0)
	sender := NewSender(log.NewNopLogger(), r1, SenderConfig{
		Name:     "replica-1",
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- sender.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(2 * time.Second):
		t.Fatal("[comm.TestSenderRunStopsOnCancel] Expected Run() to return after cancel but it did not.")
	}
}

func TestReceiverAcceptsUnpersisted(t *testing.T) {

	nw := &network{listeners: make(map[string]*bufconn.Listener)}

	r := newMemReplica("replica-1", 0)
	r.persistErr = pkgerrors.Wrap(ErrNotPersisted, "disk full")
	nw.serve(t, "replica-1", r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, "replica-1", nw.dialOptions()...)
	require.NoError(t, err)
	defer conn.Close()

	client := NewClient(conn)

	tag, err := client.Add(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag)

	require.NoError(t, client.Remove(ctx, "inbox"))

	other := newMemReplica("replica-2", 100)
	_, err = other.Add("drafts")
	require.NoError(t, err)
	require.NoError(t, client.Push(ctx, other.Snapshot()))
	assert.True(t, r.Contains("drafts"))

	// Any other failure is reported.
	r.persistErr = errors.New("broken")
	_, err = client.Add(ctx, "trash")
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestAcknowledgeNewIncarnation(t *testing.T) {

	sender := NewSender(log.NewNopLogger(), newMemReplica("replica-1", 0), SenderConfig{
		Name:     "replica-1",
		Peers:    map[string]string{"replica-2": "replica-2"},
		Interval: time.Second,
	})

	local := VClock{"replica-1@a": 5}

	sender.Acknowledge(&Message{
		Sender:      "replica-2",
		Incarnation: "b1",
		VClock:      VClock{"replica-1@a": 5, "replica-2@b1": 3},
	})
	assert.True(t, sender.upToDate("replica-2", local))

	// Same incarnation keeps what is known.
	sender.Acknowledge(&Message{
		Sender:      "replica-2",
		Incarnation: "b1",
		VClock:      VClock{"replica-2@b1": 4},
	})
	assert.True(t, sender.upToDate("replica-2", local))

	// replica-2 lost its state and came back.
	sender.Acknowledge(&Message{
		Sender:      "replica-2",
		Incarnation: "b2",
		VClock:      VClock{"replica-2@b2": 1},
	})
	assert.False(t, sender.upToDate("replica-2", local))

	// Unknown senders are ignored.
	sender.Acknowledge(&Message{Sender: "replica-9", VClock: local})
	assert.False(t, sender.upToDate("replica-9", local))
}

func TestSenderForgetsPeerOnFailure(t *testing.T) {

	nw := &network{listeners: make(map[string]*bufconn.Listener)}

	r1 := newMemReplica("replica-1", 0)
	_, err := r1.Add("x")
	require.NoError(t, err)

	sender := NewSender(log.NewNopLogger(), r1, SenderConfig{
		Name:        "replica-1",
		Peers:       map[string]string{"replica-2": "replica-2"},
		Interval:    200 * time.Millisecond,
		DialOptions: nw.dialOptions(),
	})
	defer sender.Close()

	sender.Acknowledge(&Message{Sender: "replica-2", VClock: VClock{"replica-2": 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.Equal(t, 1, sender.SyncOnce(ctx))

	sender.lock.Lock()
	_, found := sender.acked["replica-2"]
	sender.lock.Unlock()

	if found {
		t.Fatal("[comm.TestSenderForgetsPeerOnFailure] Expected acknowledged clock of replica-2 to be dropped after a failed push.")
	}
}
