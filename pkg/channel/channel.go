// Package channel implements the payload-opaque unreliable-datagram
// emulator the GBN and SR engines run on top of: a real UDP socket bound
// to one peer, with deterministic loss/duplication/reordering/delay and
// a token-bucket rate limit injected at enqueue time. It never looks
// inside a frame — everything here operates on raw bytes.
package channel

import (
	"errors"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rjsaputra/byte-bistro/pkg/metrics"
)

// drainChunk and drainCap bound the bounded-wait loop in drain: sleep in
// chunks of at most drainChunk until the head is ready, up to a total of
// drainCap.
const (
	drainChunk = 5 * time.Millisecond
	drainCap   = 150 * time.Millisecond
)

// Config holds the impairment parameters applied at enqueue time.
type Config struct {
	LossPct    float64       // 0..100
	DupPct     float64       // 0..100
	ReorderPct float64       // 0..100
	DelayMean  time.Duration // added to every enqueued frame
	Jitter     time.Duration // uniform spread around DelayMean
	RateMbps   float64       // 0 disables the token bucket
	Seed       uint64        // 0 resolves to a fixed nonzero constant
}

type queuedFrame struct {
	data    []byte
	readyAt time.Time
}

// Channel is a single-owner, non-thread-safe unreliable datagram
// emulator bound to one UDP socket and one peer. Its outbound FIFO and
// PRNG belong exclusively to whichever goroutine owns the Channel.
type Channel struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	cfg  Config
	rng  *xorshift64star

	queue []*queuedFrame

	rateEnabled bool
	nsPerByte   float64
	nextTxAt    time.Time

	log   *log.Logger
	stats *metrics.Stats

	closed bool
}

// New creates a channel over an already-bound, unconnected socket and a
// known peer address (frames go out with WriteToUDP). cfg.RateMbps <= 0 disables the token bucket. log and
// stats may be nil.
func New(conn *net.UDPConn, peer *net.UDPAddr, cfg Config, logger *log.Logger, stats *metrics.Stats) *Channel {
	c := &Channel{
		conn:  conn,
		peer:  peer,
		cfg:   cfg,
		rng:   newPRNG(cfg.Seed),
		log:   logger,
		stats: stats,
	}
	if cfg.RateMbps > 0 {
		c.rateEnabled = true
		c.nsPerByte = 8000.0 / cfg.RateMbps
	}
	return c
}

// Peer returns the channel's current notion of the remote address.
func (c *Channel) Peer() *net.UDPAddr {
	return c.peer
}

// Send enqueues data (subject to loss/dup/reorder injection), then
// opportunistically drains the FIFO. It returns len(data) whenever the
// frame was accepted into the pipeline — including when the drain
// deferred everything because the head wasn't ready yet or the token
// bucket withheld transmission. This conflates "queued" with
// "transmitted" by design: callers only need to know the channel took
// ownership of the bytes, not whether they hit the wire this call. It
// returns an error only for an unrecoverable socket error, never for
// EAGAIN/EWOULDBLOCK-equivalents.
func (c *Channel) Send(data []byte) (int, error) {
	if c.closed {
		return 0, errors.New("channel: send on closed channel")
	}

	if c.rng.chance(c.cfg.LossPct) {
		if c.stats != nil {
			c.stats.IncDropped()
		}
		return len(data), nil
	}

	delay := c.cfg.DelayMean.Nanoseconds() + int64(c.rng.uniform(float64(c.cfg.Jitter.Nanoseconds())))
	if delay < 0 {
		delay = 0
	}
	readyAt := time.Now().Add(time.Duration(delay))

	cp := make([]byte, len(data))
	copy(cp, data)
	c.queue = append(c.queue, &queuedFrame{data: cp, readyAt: readyAt})

	if c.rng.chance(c.cfg.DupPct) {
		dup := make([]byte, len(data))
		copy(dup, data)
		c.queue = append(c.queue, &queuedFrame{data: dup, readyAt: readyAt.Add(time.Millisecond)})
		if c.stats != nil {
			c.stats.IncDuplicated()
		}
	}

	if len(c.queue) >= 2 && c.rng.chance(c.cfg.ReorderPct) {
		c.queue[0], c.queue[1] = c.queue[1], c.queue[0]
		if c.stats != nil {
			c.stats.IncReordered()
		}
	}

	if err := c.drain(); err != nil {
		return 0, err
	}
	return len(data), nil
}

// drain waits (bounded) for the head of the queue to become ready, then
// transmits every ready frame the token bucket currently permits.
func (c *Channel) drain() error {
	waited := time.Duration(0)
	for len(c.queue) > 0 && waited < drainCap {
		if !time.Now().Before(c.queue[0].readyAt) {
			break
		}
		chunk := drainChunk
		if remaining := drainCap - waited; remaining < chunk {
			chunk = remaining
		}
		time.Sleep(chunk)
		waited += chunk
	}

	for len(c.queue) > 0 {
		head := c.queue[0]
		if time.Now().Before(head.readyAt) {
			break
		}
		if c.rateEnabled && time.Now().Before(c.nextTxAt) {
			if c.stats != nil {
				c.stats.IncThrottled()
			}
			break
		}

		n, err := c.conn.WriteToUDP(head.data, c.peer)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return err
		}
		c.queue = c.queue[1:]

		if c.rateEnabled {
			c.nextTxAt = time.Now().Add(time.Duration(c.nsPerByte * float64(len(head.data))))
		}
		if c.stats != nil {
			c.stats.AddBytesTx(n)
		}
		if c.log != nil {
			c.log.Debug("tx", "bytes", n, "peer", c.peer.String())
		}
	}
	return nil
}

// Recv waits up to timeout for one datagram. It returns (0, nil) on
// timeout, (n, nil) on success, and a non-nil error only for an
// unrecoverable socket error. On success it updates the remembered peer
// address from the datagram's source, enabling both server-side peer
// learning on the first datagram and client-side address refresh.
func (c *Channel) Recv(buf []byte, timeout time.Duration) (int, error) {
	if c.closed {
		return 0, errors.New("channel: recv on closed channel")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}

	c.peer = addr
	if c.stats != nil {
		c.stats.AddBytesRx(n)
	}
	if c.log != nil {
		c.log.Debug("rx", "bytes", n, "peer", addr.String())
	}
	return n, nil
}

// Close releases the channel's queue and its owned socket. It is
// idempotent-safe only once; calling any operation after Close is
// undefined, matching the spec's single-owner lifecycle.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.queue = nil
	return c.conn.Close()
}
