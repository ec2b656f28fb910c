// Package sr implements the Selective Repeat reliable transport engine.
// Like GBN it shares one cumulative ack field on the wire, but unlike
// GBN it gives each outstanding segment its own retransmission timer and
// lets the receiver buffer out-of-order segments instead of discarding
// them — so one lost segment costs one retransmission, not the whole
// window. Send runs its own poll/retransmit/transmit loop and blocks
// (bounded by rto-paced polling) until every byte it was given is
// acknowledged; Recv stays non-blocking beyond its timeout.
package sr

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/rjsaputra/byte-bistro/pkg/metrics"
	"github.com/rjsaputra/byte-bistro/pkg/seqnum"
	"github.com/rjsaputra/byte-bistro/pkg/timer"
	"github.com/rjsaputra/byte-bistro/pkg/transport"
	"github.com/rjsaputra/byte-bistro/pkg/wire"
)

type senderSlot struct {
	inUse   bool
	seq     uint32
	payload []byte
	t       timer.Timer
}

type receiverSlot struct {
	occupied bool
	seq      uint32
	payload  []byte
}

// SR is a single-owner Selective Repeat sender/receiver pair. Every
// exported method must be called from the goroutine that owns it.
type SR struct {
	ch  transport.Channel
	wnd int
	mss int
	rto time.Duration

	sndUna uint32
	sndNxt uint32
	rcvNxt uint32

	senderSlots   []senderSlot
	receiverSlots []receiverSlot

	deliverQueue [][]byte

	log   *log.Logger
	stats *metrics.Stats
}

// New builds an SR engine on top of ch, with both sequence spaces
// starting at initSeq. log and stats may be nil.
func New(ch transport.Channel, wnd, mss int, rto time.Duration, initSeq uint32, logger *log.Logger, stats *metrics.Stats) *SR {
	return &SR{
		ch:            ch,
		wnd:           wnd,
		mss:           mss,
		rto:           rto,
		sndUna:        initSeq,
		sndNxt:        initSeq,
		rcvNxt:        initSeq,
		senderSlots:   make([]senderSlot, wnd),
		receiverSlots: make([]receiverSlot, wnd),
		log:           logger,
		stats:         stats,
	}
}

// Send fragments data into mss-sized chunks and transmits them as the
// window allows, polling for acks and retransmitting expired slots
// along the way. Once every chunk has been offered, it drains — blocking
// on bounded, rto-paced polls — until the whole message is acknowledged.
func (s *SR) Send(data []byte) error {
	i := 0
	for i < len(data) {
		if err := s.poll(0); err != nil {
			return err
		}
		s.retransmitExpired()

		if seqnum.Diff(s.sndNxt, s.sndUna) >= int32(s.wnd) {
			time.Sleep(time.Millisecond)
			continue
		}

		end := i + s.mss
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, end-i)
		copy(chunk, data[i:end])

		seq := s.sndNxt
		idx := int(seq) % s.wnd
		s.senderSlots[idx] = senderSlot{inUse: true, seq: seq, payload: chunk}
		if err := s.sendData(seq, chunk); err != nil {
			return err
		}
		s.senderSlots[idx].t.Arm(s.rto)
		s.sndNxt++
		i = end

		if s.stats != nil {
			s.stats.SetWindowOutstanding(int(seqnum.Diff(s.sndNxt, s.sndUna)))
		}
	}

	for s.sndUna != s.sndNxt {
		if err := s.poll(s.rto); err != nil {
			return err
		}
		s.retransmitExpired()
	}
	return nil
}

// poll makes one channel recv attempt and, on a clean parse, consumes
// its ack field. It never inspects a DATA payload — that is strictly
// Recv's job.
func (s *SR) poll(timeout time.Duration) error {
	buf := make([]byte, wire.FrameHeaderSize+s.mss)
	n, err := s.ch.Recv(buf, timeout)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	hdr, _, ok := wire.Parse(buf[:n])
	if !ok {
		return nil
	}
	s.consumeAck(hdr.Ack)
	return nil
}

func (s *SR) sendData(seq uint32, payload []byte) error {
	buf := make([]byte, wire.FrameHeaderSize+len(payload))
	n := wire.Pack(buf, wire.FlagDATA, seq, s.rcvNxt, payload)
	_, err := s.ch.Send(buf[:n])
	if err == nil && s.log != nil {
		s.log.Debug("sr send data", "seq", seq, "len", len(payload))
	}
	return err
}

func (s *SR) sendAck() error {
	buf := make([]byte, wire.FrameHeaderSize)
	n := wire.Pack(buf, wire.FlagACK, s.sndNxt, s.rcvNxt, nil)
	_, err := s.ch.Send(buf[:n])
	return err
}

// retransmitExpired resends every occupied sender slot whose own timer
// has fired, re-arming just that slot.
func (s *SR) retransmitExpired() {
	for q := s.sndUna; q != s.sndNxt; q++ {
		idx := int(q) % s.wnd
		slot := &s.senderSlots[idx]
		if !slot.inUse || slot.seq != q || !slot.t.Expired() {
			continue
		}
		if err := s.sendData(slot.seq, slot.payload); err != nil {
			if s.log != nil {
				s.log.Error("sr retransmit failed", "seq", slot.seq, "err", err)
			}
			continue
		}
		slot.t.Arm(s.rto)
		if s.stats != nil {
			s.stats.IncRetransmissions()
		}
	}
}

// consumeAck is the single cumulative-ack acceptance rule shared by
// Send's poll and Recv: if ack lies in [snd_una, snd_nxt], snd_una
// advances one step at a time up to it, freeing and disarming each
// passed slot regardless of whether that particular segment was ever
// individually observed as acknowledged.
func (s *SR) consumeAck(ack uint32) {
	if !seqnum.InRangeInclusive(ack, s.sndUna, s.sndNxt) {
		return
	}
	for s.sndUna != ack {
		idx := int(s.sndUna) % s.wnd
		s.senderSlots[idx].t.Disarm()
		s.senderSlots[idx] = senderSlot{}
		s.sndUna++
	}
	if s.stats != nil {
		s.stats.SetCumulativeAck(s.sndUna)
	}
}

// Recv delivers one queued application payload if available, otherwise
// processes exactly one inbound frame per call.
func (s *SR) Recv(out []byte, timeout time.Duration) (int, error) {
	if len(s.deliverQueue) > 0 {
		n := copy(out, s.deliverQueue[0])
		s.deliverQueue = s.deliverQueue[1:]
		return n, nil
	}

	buf := make([]byte, wire.FrameHeaderSize+s.mss)
	n, err := s.ch.Recv(buf, timeout)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	hdr, payload, ok := wire.Parse(buf[:n])
	if !ok {
		return 0, nil
	}

	s.consumeAck(hdr.Ack)

	if hdr.Flags&wire.FlagDATA == 0 {
		return 0, nil
	}

	if seqnum.Diff(hdr.Seq, s.rcvNxt) >= int32(s.wnd) || seqnum.Less(hdr.Seq, s.rcvNxt) {
		if err := s.sendAck(); err != nil && s.log != nil {
			s.log.Error("sr ack (out of window) failed", "err", err)
		}
		return 0, nil
	}

	idx := int(hdr.Seq) % s.wnd
	if !s.receiverSlots[idx].occupied {
		cp := append([]byte(nil), payload...)
		s.receiverSlots[idx] = receiverSlot{occupied: true, seq: hdr.Seq, payload: cp}
	}

	if hdr.Seq != s.rcvNxt {
		if err := s.sendAck(); err != nil && s.log != nil {
			s.log.Error("sr ack (gap) failed", "err", err)
		}
		return 0, nil
	}

	first := s.receiverSlots[int(s.rcvNxt)%s.wnd].payload
	s.receiverSlots[int(s.rcvNxt)%s.wnd] = receiverSlot{}
	s.rcvNxt++

	for s.receiverSlots[int(s.rcvNxt)%s.wnd].occupied {
		idx := int(s.rcvNxt) % s.wnd
		s.deliverQueue = append(s.deliverQueue, s.receiverSlots[idx].payload)
		s.receiverSlots[idx] = receiverSlot{}
		s.rcvNxt++
	}

	if err := s.sendAck(); err != nil && s.log != nil {
		s.log.Error("sr ack (advance) failed", "err", err)
	}
	return copy(out, first), nil
}

// Close releases the underlying channel.
func (s *SR) Close() error {
	return s.ch.Close()
}
