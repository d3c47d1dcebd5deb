package comm

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"google.golang.org/grpc"
)

// Structs

// SenderConfig bundles everything a sender
// needs to know about its environment.
type SenderConfig struct {
	// Name of the local replica.
	Name string
	// Peers maps peer replica names to their gRPC address.
	Peers map[string]string
	// Interval between two anti-entropy rounds.
	Interval time.Duration
	// DialOptions used for every peer connection.
	DialOptions []grpc.DialOption
	// Pushes and Failures count attempted pushes per
	// peer and pushes that failed after all retries.
	Pushes   metrics.Counter
	Failures metrics.Counter
}

// Sender periodically pushes the state of the local
// replica to every peer that has not seen it yet.
type Sender struct {
	lock     *sync.Mutex
	logger   log.Logger
	replica  Replica
	config   SenderConfig
	clients  map[string]*Client
	conns    map[string]*grpc.ClientConn
	acked    map[string]VClock
	incs     map[string]string
	pushes   metrics.Counter
	failures metrics.Counter
}

// Functions

// NewSender initializes a sender for replica. Nothing
// is sent before Run or SyncOnce is called.
func NewSender(logger log.Logger, replica Replica, config SenderConfig) *Sender {

	sender := &Sender{
		lock:     &sync.Mutex{},
		logger:   log.With(logger, "component", "sender"),
		replica:  replica,
		config:   config,
		clients:  make(map[string]*Client),
		conns:    make(map[string]*grpc.ClientConn),
		acked:    make(map[string]VClock),
		incs:     make(map[string]string),
		pushes:   config.Pushes,
		failures: config.Failures,
	}

	if sender.pushes == nil {
		sender.pushes = discard.NewCounter()
	}

	if sender.failures == nil {
		sender.failures = discard.NewCounter()
	}

	return sender
}

// Acknowledge records that the replica which sent msg
// holds at least the state described by its clock. The
// receiver calls it for every merged message so that the
// sender does not push back what a peer just sent. A
// message from a new incarnation of a peer replaces all
// earlier knowledge about that peer, since the peer may
// have lost its state.
func (sender *Sender) Acknowledge(msg *Message) {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	if _, known := sender.config.Peers[msg.Sender]; !known {
		return
	}

	if sender.incs[msg.Sender] != msg.Incarnation {
		sender.incs[msg.Sender] = msg.Incarnation
		delete(sender.acked, msg.Sender)
	}

	sender.ack(msg.Sender, msg.VClock)
}

// ack merges clock into the acknowledged clock of
// peer. It expects sender.lock to be held.
func (sender *Sender) ack(peer string, clock VClock) {

	acked, found := sender.acked[peer]
	if !found {
		acked = make(VClock)
		sender.acked[peer] = acked
	}

	acked.Merge(clock)
}

// forget drops everything known about peer so
// that the next round pushes to it again.
func (sender *Sender) forget(peer string) {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	delete(sender.acked, peer)
}

// Run performs one anti-entropy round per configured
// interval until ctx is cancelled.
func (sender *Sender) Run(ctx context.Context) error {

	ticker := time.NewTicker(sender.config.Interval)
	defer ticker.Stop()

	for {

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sender.SyncOnce(ctx)
		}
	}
}

// SyncOnce pushes the current state of the replica to
// every peer whose acknowledged clock does not already
// descend from it. It returns the number of failed peers.
func (sender *Sender) SyncOnce(ctx context.Context) int {

	msg := sender.replica.Snapshot()
	failed := 0

	// TODO: Push to peers in parallel once the number
	// of peers makes a sequential round too slow.
	for peer := range sender.config.Peers {

		if sender.upToDate(peer, msg.VClock) {
			continue
		}

		sender.pushes.With("peer", peer).Add(1)

		if err := sender.push(ctx, peer, msg); err != nil {

			failed++
			sender.failures.With("peer", peer).Add(1)
			sender.forget(peer)

			level.Warn(sender.logger).Log(
				"msg", "could not send state to downstream replica",
				"peer", peer,
				"err", err,
			)

			continue
		}

		sender.lock.Lock()
		sender.ack(peer, msg.VClock)
		sender.lock.Unlock()

		level.Debug(sender.logger).Log(
			"msg", "sent state to downstream replica",
			"peer", peer,
			"vclock", msg.VClock.String(),
		)
	}

	return failed
}

func (sender *Sender) upToDate(peer string, clock VClock) bool {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	acked, found := sender.acked[peer]

	return found && acked.Descends(clock)
}

// push delivers msg to peer, retrying with exponential
// backoff for at most one sync interval.
func (sender *Sender) push(ctx context.Context, peer string, msg *Message) error {

	client, err := sender.client(ctx, peer)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = sender.config.Interval
	b.MaxElapsedTime = sender.config.Interval

	return backoff.Retry(func() error {
		return client.Push(ctx, msg)
	}, backoff.WithContext(b, ctx))
}

// client returns the cached client for peer,
// connecting lazily on first use.
func (sender *Sender) client(ctx context.Context, peer string) (*Client, error) {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	if client, found := sender.clients[peer]; found {
		return client, nil
	}

	conn, err := Dial(ctx, sender.config.Peers[peer], sender.config.DialOptions...)
	if err != nil {
		return nil, err
	}

	sender.conns[peer] = conn
	sender.clients[peer] = NewClient(conn)

	return sender.clients[peer], nil
}

// Close tears down all peer connections.
func (sender *Sender) Close() error {

	sender.lock.Lock()
	defer sender.lock.Unlock()

	var firstErr error

	for peer, conn := range sender.conns {

		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		delete(sender.conns, peer)
		delete(sender.clients, peer)
	}

	return firstErr
}
