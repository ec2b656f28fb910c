// Package seqnum implements the wrap-around-safe comparisons every
// sequence-number decision in GBN and SR relies on. All comparisons use
// signed interpretation of a 32-bit difference, never unsigned < or >
// directly, so sequence space wrapping past 2^32-1 behaves correctly.
package seqnum

// Less reports whether a precedes b.
func Less(a, b uint32) bool {
	return int32(a-b) < 0
}

// LessEq reports whether a precedes or equals b.
func LessEq(a, b uint32) bool {
	return int32(a-b) <= 0
}

// InRangeInclusive reports whether v falls within [lo, hi] under
// wrap-around ordering.
func InRangeInclusive(v, lo, hi uint32) bool {
	return LessEq(lo, v) && LessEq(v, hi)
}

// Diff returns a-b as a signed distance (positive means a follows b).
func Diff(a, b uint32) int32 {
	return int32(a - b)
}
