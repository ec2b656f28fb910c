// Package gbn implements the Go-Back-N reliable transport engine: a
// cumulative-ACK sliding window with a single retransmission timer
// covering the whole outstanding range. Progress and liveness are both
// driven from Recv; Send only ever fragments and enqueues what currently
// fits in the window.
package gbn

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rjsaputra/byte-bistro/pkg/metrics"
	"github.com/rjsaputra/byte-bistro/pkg/seqnum"
	"github.com/rjsaputra/byte-bistro/pkg/timer"
	"github.com/rjsaputra/byte-bistro/pkg/transport"
	"github.com/rjsaputra/byte-bistro/pkg/wire"
)

var errBufferTooSmall = errors.New("gbn: packed buffer too small")

// maxSnapshot bounds how much of one application message Send retains
// for retransmission. A message longer than this is truncated at the
// boundary, matching the snapshot's role as a bounded retransmit buffer
// rather than an unbounded send queue.
const maxSnapshot = 1 << 16

// GBN is a Go-Back-N sender/receiver pair sharing one sequence space.
// It is single-owner: every exported method must be called from the
// goroutine that owns it.
type GBN struct {
	ch  transport.Channel
	wnd int
	mss int
	rto time.Duration

	sndUna uint32
	sndNxt uint32
	rcvNxt uint32

	outSnapshot  []byte
	snapshotBase uint32

	inLatch []byte

	t timer.Timer

	log   *log.Logger
	stats *metrics.Stats
}

// New builds a GBN engine on top of ch, with the sender and receiver
// sequence counters both starting at initSeq. log and stats may be nil.
func New(ch transport.Channel, wnd, mss int, rto time.Duration, initSeq uint32, logger *log.Logger, stats *metrics.Stats) *GBN {
	return &GBN{
		ch:     ch,
		wnd:    wnd,
		mss:    mss,
		rto:    rto,
		sndUna: initSeq,
		sndNxt: initSeq,
		rcvNxt: initSeq,
		log:    logger,
		stats:  stats,
	}
}

// Send snapshots data (truncated to maxSnapshot) as the current
// retransmission source and fragments as much of it as the window
// currently allows into DATA frames. It never blocks; any unsent tail
// is flushed opportunistically as acknowledgments free up window space
// during later Recv calls.
func (g *GBN) Send(data []byte) error {
	if len(data) > maxSnapshot {
		data = data[:maxSnapshot]
	}
	snap := make([]byte, len(data))
	copy(snap, data)
	g.outSnapshot = snap
	g.snapshotBase = g.sndNxt
	return g.pump()
}

// pump fragments outSnapshot from snd_nxt onward while the window has
// room and unsent bytes remain.
func (g *GBN) pump() error {
	for seqnum.Diff(g.sndNxt, g.sndUna) < int32(g.wnd) {
		offset := int(seqnum.Diff(g.sndNxt, g.snapshotBase)) * g.mss
		if offset >= len(g.outSnapshot) {
			break
		}
		end := offset + g.mss
		if end > len(g.outSnapshot) {
			end = len(g.outSnapshot)
		}
		if err := g.sendSegment(g.sndNxt, g.outSnapshot[offset:end]); err != nil {
			return err
		}
		if !g.t.Armed() {
			g.t.Arm(g.rto)
		}
		g.sndNxt++
	}
	if g.stats != nil {
		g.stats.SetWindowOutstanding(int(seqnum.Diff(g.sndNxt, g.sndUna)))
	}
	return nil
}

func (g *GBN) sendSegment(seq uint32, payload []byte) error {
	buf := make([]byte, wire.FrameHeaderSize+len(payload))
	n := wire.Pack(buf, wire.FlagDATA, seq, g.rcvNxt, payload)
	if n == 0 {
		return errBufferTooSmall
	}
	_, err := g.ch.Send(buf[:n])
	if err == nil && g.log != nil {
		g.log.Debug("gbn send data", "seq", seq, "len", len(payload))
	}
	return err
}

func (g *GBN) sendPureAck() error {
	buf := make([]byte, wire.FrameHeaderSize)
	n := wire.Pack(buf, wire.FlagACK, g.sndNxt, g.rcvNxt, nil)
	_, err := g.ch.Send(buf[:n])
	return err
}

// retransmitWindow resends every segment in [snd_una, snd_nxt) by
// re-slicing the retained snapshot at the same mss boundaries the
// original fragmentation used.
func (g *GBN) retransmitWindow() {
	for q := g.sndUna; q != g.sndNxt; q++ {
		offset := int(seqnum.Diff(q, g.snapshotBase)) * g.mss
		if offset > len(g.outSnapshot) {
			offset = len(g.outSnapshot)
		}
		end := offset + g.mss
		if end > len(g.outSnapshot) {
			end = len(g.outSnapshot)
		}
		if err := g.sendSegment(q, g.outSnapshot[offset:end]); err != nil {
			if g.log != nil {
				g.log.Error("gbn retransmit failed", "seq", q, "err", err)
			}
			continue
		}
		if g.stats != nil {
			g.stats.IncRetransmissions()
		}
	}
	g.t.Arm(g.rto)
}

// acceptAck applies a cumulative ack if it lies within [snd_una, snd_nxt],
// re-arming or disarming the timer and resuming any deferred send.
func (g *GBN) acceptAck(ack uint32) {
	if !seqnum.InRangeInclusive(ack, g.sndUna, g.sndNxt) {
		return
	}
	g.sndUna = ack
	if g.sndUna == g.sndNxt {
		g.t.Disarm()
	} else {
		g.t.Arm(g.rto)
	}
	if g.stats != nil {
		g.stats.SetCumulativeAck(g.sndUna)
	}
	if err := g.pump(); err != nil && g.log != nil {
		g.log.Error("gbn resume send failed", "err", err)
	}
}

// Recv drives both retransmission-on-timeout and inbound frame
// processing. It returns at most one application payload per call.
func (g *GBN) Recv(out []byte, timeout time.Duration) (int, error) {
	if len(g.inLatch) > 0 {
		n := copy(out, g.inLatch)
		g.inLatch = nil
		return n, nil
	}

	if g.sndUna != g.sndNxt && g.t.Expired() {
		g.retransmitWindow()
	}

	buf := make([]byte, wire.FrameHeaderSize+g.mss)
	n, err := g.ch.Recv(buf, timeout)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if g.sndUna != g.sndNxt && g.t.Expired() {
			g.retransmitWindow()
		}
		return 0, nil
	}

	hdr, payload, ok := wire.Parse(buf[:n])
	if !ok {
		return 0, nil
	}

	g.acceptAck(hdr.Ack)

	if hdr.Flags&wire.FlagDATA == 0 {
		return 0, nil
	}

	if hdr.Seq != g.rcvNxt {
		if err := g.sendPureAck(); err != nil && g.log != nil {
			g.log.Error("gbn pure ack failed", "err", err)
		}
		return 0, nil
	}

	g.inLatch = append([]byte(nil), payload...)
	g.rcvNxt++
	if err := g.sendPureAck(); err != nil && g.log != nil {
		g.log.Error("gbn ack failed", "err", err)
	}

	nOut := copy(out, g.inLatch)
	g.inLatch = nil
	return nOut, nil
}

// Close releases the underlying channel.
func (g *GBN) Close() error {
	return g.ch.Close()
}
