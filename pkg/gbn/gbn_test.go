package gbn

import (
	"net"
	"testing"
	"time"

	"github.com/rjsaputra/byte-bistro/pkg/channel"
	"github.com/rjsaputra/byte-bistro/pkg/transport"
	"github.com/rjsaputra/byte-bistro/pkg/wire"
	"github.com/stretchr/testify/require"
)

func newLoopbackChannels(t *testing.T, cfgA, cfgB channel.Config) (*channel.Channel, *channel.Channel) {
	t.Helper()
	connA, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	connB, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { connA.Close(); connB.Close() })

	chA := channel.New(connA, connB.LocalAddr().(*net.UDPAddr), cfgA, nil, nil)
	chB := channel.New(connB, connA.LocalAddr().(*net.UDPAddr), cfgB, nil, nil)
	return chA, chB
}

func TestGBNRoundTripNoImpairment(t *testing.T) {
	chA, chB := newLoopbackChannels(t, channel.Config{}, channel.Config{})
	a := New(chA, 8, 4, 40*time.Millisecond, 1, nil, nil)
	b := New(chB, 8, 4, 40*time.Millisecond, 1, nil, nil)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte("hello world!")))

	out := make([]byte, 64)
	var got []byte
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(got) < len("hello world!") {
		n, err := b.Recv(out, 50*time.Millisecond)
		require.NoError(t, err)
		got = append(got, out[:n]...)
		// drive A so it processes the ACKs b just sent.
		_, _ = a.Recv(make([]byte, 64), 10*time.Millisecond)
	}
	require.Equal(t, "hello world!", string(got))
}

func TestGBNRetransmitsUnderLoss(t *testing.T) {
	chA, chB := newLoopbackChannels(t, channel.Config{LossPct: 40, Seed: 7}, channel.Config{LossPct: 40, Seed: 9})
	a := New(chA, 8, 4, 15*time.Millisecond, 100, nil, nil)
	b := New(chB, 8, 4, 15*time.Millisecond, 100, nil, nil)
	defer a.Close()
	defer b.Close()

	msg := "retransmit me please"
	require.NoError(t, a.Send([]byte(msg)))

	out := make([]byte, 64)
	var got []byte
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(got) < len(msg) {
		n, err := b.Recv(out, 20*time.Millisecond)
		require.NoError(t, err)
		got = append(got, out[:n]...)
		_, _ = a.Recv(make([]byte, 64), 20*time.Millisecond)
	}
	require.Equal(t, msg, string(got))
}

func TestGBNWindowCapsOutstandingSegments(t *testing.T) {
	chA, chB := newLoopbackChannels(t, channel.Config{}, channel.Config{})
	a := New(chA, 2, 4, time.Second, 5, nil, nil)
	defer a.Close()
	defer chB.Close()

	require.NoError(t, a.Send([]byte("twelve-byte!")))
	require.Equal(t, int32(2), seqDiff(a.sndNxt, a.sndUna), "only wnd segments should be outstanding")
}

func TestGBNAcceptAckAcrossWrap(t *testing.T) {
	chA, chB := newLoopbackChannels(t, channel.Config{}, channel.Config{})
	a := New(chA, 4, 4, time.Second, 0xFFFFFFFE, nil, nil)
	defer a.Close()
	defer chB.Close()

	require.NoError(t, a.Send([]byte("abcdef"))) // seq 0xFFFFFFFE and 0xFFFFFFFF
	require.Equal(t, uint32(0), a.sndNxt)

	a.acceptAck(0)
	require.Equal(t, uint32(0), a.sndUna)
	require.False(t, a.t.Armed())
}

func seqDiff(a, b uint32) int32 {
	return int32(a - b)
}

// corruptingChannel flips one payload byte on the Nth frame sent, then
// behaves as a pass-through for everything else.
type corruptingChannel struct {
	transport.Channel
	corruptNth int
	sent       int
}

func (c *corruptingChannel) Send(b []byte) (int, error) {
	c.sent++
	if c.sent == c.corruptNth && len(b) > wire.FrameHeaderSize {
		corrupt := append([]byte(nil), b...)
		corrupt[wire.FrameHeaderSize] ^= 0x01
		return c.Channel.Send(corrupt)
	}
	return c.Channel.Send(b)
}

// A single-bit corruption on the wire must fail CRC validation on
// arrival, draw no ack, and be recovered by the sender's own timeout
// retransmission rather than any receiver-side NACK.
func TestGBNCorruptedFrameIsRejectedAndRetransmitted(t *testing.T) {
	chA, chB := newLoopbackChannels(t, channel.Config{}, channel.Config{})
	a := New(&corruptingChannel{Channel: chA, corruptNth: 1}, 4, 8, 30*time.Millisecond, 1, nil, nil)
	b := New(chB, 4, 8, 30*time.Millisecond, 1, nil, nil)
	defer a.Close()
	defer b.Close()

	msg := "intact message"
	require.NoError(t, a.Send([]byte(msg)))

	out := make([]byte, 64)
	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(got) < len(msg) {
		n, err := b.Recv(out, 20*time.Millisecond)
		require.NoError(t, err)
		got = append(got, out[:n]...)
		_, _ = a.Recv(make([]byte, 64), 20*time.Millisecond)
	}
	require.Equal(t, msg, string(got), "the retransmitted copy must eventually be delivered intact")
}
