// Package wire implements the fixed 18-byte frame header used by the GBN
// and SR transports: pack copies a header and payload onto the wire with
// an integrity field, parse validates and slices them back apart. The
// layout is exact and little-endian; nothing here interprets the
// payload.
package wire

import (
	"encoding/binary"

	"github.com/rjsaputra/byte-bistro/pkg/checksum"
)

const (
	// Magic identifies a Byte-Bistro frame on the wire.
	Magic uint16 = 0xB17E

	// HeaderLen is the value carried in the hdrlen byte, used as a version
	// marker. It does not count the crc field, so it is not the number of
	// header bytes after hdrlen. Strict on receive.
	HeaderLen uint8 = 10

	// FrameHeaderSize is the total header size in bytes: magic(2) flags(1)
	// hdrlen(1) seq(4) ack(4) len(2) crc(4).
	FrameHeaderSize = 18

	// MaxPayload is the largest payload len can express.
	MaxPayload = 65535
)

// Flags bitfield values.
const (
	FlagACK  uint8 = 0x01
	FlagDATA uint8 = 0x02
	FlagFIN  uint8 = 0x04
)

// Header is the parsed form of a frame's 18-byte header.
type Header struct {
	Magic   uint16
	Flags   uint8
	HdrLen  uint8
	Seq     uint32
	Ack     uint32
	Len     uint16
	CRC     uint32
}

// Pack writes a header for the given flags/seq/ack plus the payload into
// buf, returning the number of bytes written. It returns 0 if buf is too
// small to hold the header and payload (cap < 18+len).
func Pack(buf []byte, flags uint8, seq, ack uint32, payload []byte) int {
	total := FrameHeaderSize + len(payload)
	if len(buf) < total {
		return 0
	}

	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = flags
	buf[3] = HeaderLen
	binary.LittleEndian.PutUint32(buf[4:8], seq)
	binary.LittleEndian.PutUint32(buf[8:12], ack)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(payload)))
	binary.LittleEndian.PutUint32(buf[14:18], 0) // crc field zeroed for computation

	copy(buf[FrameHeaderSize:total], payload)

	crc := computeCRC(buf[:total])
	binary.LittleEndian.PutUint32(buf[14:18], crc)

	return total
}

// Parse validates and slices a received datagram. ok is false when the
// datagram is too short, the magic or hdrlen don't match, the declared
// length overruns the buffer, or the checksum doesn't verify. On success
// payload aliases buf — callers that retain it across the next Recv call
// must copy it.
func Parse(buf []byte) (hdr Header, payload []byte, ok bool) {
	if len(buf) < FrameHeaderSize {
		return Header{}, nil, false
	}

	hdr.Magic = binary.LittleEndian.Uint16(buf[0:2])
	if hdr.Magic != Magic {
		return Header{}, nil, false
	}

	hdr.Flags = buf[2]
	hdr.HdrLen = buf[3]
	if hdr.HdrLen != HeaderLen {
		return Header{}, nil, false
	}

	hdr.Seq = binary.LittleEndian.Uint32(buf[4:8])
	hdr.Ack = binary.LittleEndian.Uint32(buf[8:12])
	hdr.Len = binary.LittleEndian.Uint16(buf[12:14])
	hdr.CRC = binary.LittleEndian.Uint32(buf[14:18])

	total := FrameHeaderSize + int(hdr.Len)
	if len(buf) < total {
		return Header{}, nil, false
	}

	scratch := make([]byte, total)
	copy(scratch, buf[:total])
	binary.LittleEndian.PutUint32(scratch[14:18], 0)
	if computeCRC(scratch) != hdr.CRC {
		return Header{}, nil, false
	}

	return hdr, buf[FrameHeaderSize:total], true
}

// computeCRC returns CRC32C over frame (with the crc field already
// zeroed) when hardware support is available, else Fletcher-32.
func computeCRC(frame []byte) uint32 {
	if checksum.HWAvailable() {
		return checksum.CRC32CHW(frame)
	}
	return checksum.Fletcher32(frame)
}
