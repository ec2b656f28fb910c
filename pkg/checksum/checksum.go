// Package checksum provides the integrity primitives used by the frame
// codec: a portable Fletcher-32 and an optional hardware-accelerated
// CRC32C path, with a runtime probe so callers never need to touch CPUID
// directly.
package checksum

import (
	"hash/crc32"

	"golang.org/x/sys/cpu"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Fletcher32 computes the standard Fletcher-32 checksum over data,
// processing in 360-byte blocks with deferred modulus reduction. An empty
// slice is valid and returns the fully-reduced initial state.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32 = 0xFFFF, 0xFFFF
	n := len(data)
	i := 0
	for i < n {
		blockLen := n - i
		if blockLen > 360 {
			blockLen = 360
		}
		for j := 0; j < blockLen; j += 2 {
			var word uint32
			if j+1 < blockLen {
				word = uint32(data[i+j]) | uint32(data[i+j+1])<<8
			} else {
				word = uint32(data[i+j])
			}
			sum1 += word
			sum2 += sum1
		}
		sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
		sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
		i += blockLen
	}
	sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
	sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	return (sum2 << 16) | sum1
}

// HWAvailable reports whether the CPU exposes the instruction CRC32C's
// hardware path relies on. On x86_64 this is SSE4.2 (CPUID leaf 1, ECX bit
// 20); it is false on every other architecture.
func HWAvailable() bool {
	return cpu.X86.HasSSE42
}

// CRC32CHW computes CRC32C (Castagnoli) over data using the hardware path
// when available. It returns 0 when hardware support is absent, letting
// callers fall back to Fletcher32.
func CRC32CHW(data []byte) uint32 {
	if !HWAvailable() {
		return 0
	}
	return crc32.Checksum(data, castagnoliTable)
}
