package wire

import "testing"

func TestPackParseRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	payload := []byte("ABC")

	n := Pack(buf, FlagDATA, 1, 0, payload)
	if n != FrameHeaderSize+len(payload) {
		t.Fatalf("Pack returned %d, want %d", n, FrameHeaderSize+len(payload))
	}

	hdr, got, ok := Parse(buf[:n])
	if !ok {
		t.Fatal("Parse failed on freshly packed frame")
	}
	if hdr.Flags != FlagDATA {
		t.Errorf("Flags = 0x%02X, want 0x%02X", hdr.Flags, FlagDATA)
	}
	if hdr.Seq != 1 {
		t.Errorf("Seq = %d, want 1", hdr.Seq)
	}
	if hdr.Ack != 0 {
		t.Errorf("Ack = %d, want 0", hdr.Ack)
	}
	if string(got) != "ABC" {
		t.Errorf("payload = %q, want %q", got, "ABC")
	}
}

func TestPackEmptyPayload(t *testing.T) {
	buf := make([]byte, 64)
	n := Pack(buf, FlagDATA, 5, 5, nil)
	if n != FrameHeaderSize {
		t.Fatalf("Pack returned %d, want %d", n, FrameHeaderSize)
	}
	hdr, payload, ok := Parse(buf[:n])
	if !ok {
		t.Fatal("Parse failed on empty-payload frame")
	}
	if len(payload) != 0 {
		t.Errorf("payload len = %d, want 0", len(payload))
	}
	if hdr.Len != 0 {
		t.Errorf("Len = %d, want 0", hdr.Len)
	}
}

func TestPackOverflow(t *testing.T) {
	buf := make([]byte, 10)
	n := Pack(buf, FlagDATA, 1, 0, []byte("too big for ten bytes"))
	if n != 0 {
		t.Errorf("Pack into undersized buffer returned %d, want 0", n)
	}
}

func TestParseBitFlip(t *testing.T) {
	buf := make([]byte, 64)
	n := Pack(buf, FlagDATA, 1, 0, []byte("hello world"))

	for i := 0; i < n; i++ {
		corrupt := make([]byte, n)
		copy(corrupt, buf[:n])
		corrupt[i] ^= 0x01
		if _, _, ok := Parse(corrupt); ok {
			t.Errorf("bit flip at byte %d still parsed as valid", i)
		}
	}
}

func TestParseShort(t *testing.T) {
	if _, _, ok := Parse([]byte{0x7E, 0xB1, 0x00}); ok {
		t.Error("Parse accepted a buffer shorter than the header")
	}
}

func TestParseBadMagic(t *testing.T) {
	buf := make([]byte, 64)
	Pack(buf, FlagDATA, 1, 0, []byte("x"))
	buf[0] = 0x00
	if _, _, ok := Parse(buf[:FrameHeaderSize+1]); ok {
		t.Error("Parse accepted a bad magic value")
	}
}

func TestParseBadHdrLen(t *testing.T) {
	buf := make([]byte, 64)
	n := Pack(buf, FlagDATA, 1, 0, []byte("x"))
	buf[3] = 11
	if _, _, ok := Parse(buf[:n]); ok {
		t.Error("Parse accepted a non-10 hdrlen")
	}
}

func TestParseLenUnderrun(t *testing.T) {
	buf := make([]byte, 64)
	n := Pack(buf, FlagDATA, 1, 0, []byte("hello"))
	if _, _, ok := Parse(buf[:n-1]); ok {
		t.Error("Parse accepted a buffer shorter than header+len")
	}
}

func TestPackFlagsRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	n := Pack(buf, FlagACK|FlagDATA, 7, 3, []byte("p"))
	hdr, _, ok := Parse(buf[:n])
	if !ok {
		t.Fatal("Parse failed")
	}
	if hdr.Flags&FlagACK == 0 || hdr.Flags&FlagDATA == 0 {
		t.Errorf("Flags = 0x%02X, want ACK|DATA set", hdr.Flags)
	}
}
