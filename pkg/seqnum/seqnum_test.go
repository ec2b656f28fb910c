package seqnum

import "testing"

func TestLessOrdinary(t *testing.T) {
	if !Less(1, 2) {
		t.Error("Less(1, 2) should be true")
	}
	if Less(2, 1) {
		t.Error("Less(2, 1) should be false")
	}
	if Less(5, 5) {
		t.Error("Less(5, 5) should be false")
	}
}

func TestLessAcrossWrap(t *testing.T) {
	if !Less(0xFFFFFFFF, 0) {
		t.Error("Less(0xFFFFFFFF, 0) should be true across the wrap boundary")
	}
	if Less(0, 0xFFFFFFFF) {
		t.Error("Less(0, 0xFFFFFFFF) should be false across the wrap boundary")
	}
}

func TestLessEqIncludesEquality(t *testing.T) {
	if !LessEq(5, 5) {
		t.Error("LessEq(5, 5) should be true")
	}
	if !LessEq(0xFFFFFFFF, 0xFFFFFFFF) {
		t.Error("LessEq at the wrap boundary should still hold for equal values")
	}
}

func TestInRangeInclusive(t *testing.T) {
	if !InRangeInclusive(5, 1, 10) {
		t.Error("5 should fall within [1, 10]")
	}
	if InRangeInclusive(11, 1, 10) {
		t.Error("11 should fall outside [1, 10]")
	}
	if !InRangeInclusive(1, 1, 10) {
		t.Error("the lower bound itself should be in range")
	}
	if !InRangeInclusive(10, 1, 10) {
		t.Error("the upper bound itself should be in range")
	}
}

func TestInRangeInclusiveAcrossWrap(t *testing.T) {
	if !InRangeInclusive(0, 0xFFFFFFFE, 2) {
		t.Error("0 should fall within [0xFFFFFFFE, 2] once the range wraps")
	}
	if InRangeInclusive(3, 0xFFFFFFFE, 2) {
		t.Error("3 should fall outside [0xFFFFFFFE, 2]")
	}
}

func TestDiffSign(t *testing.T) {
	if Diff(5, 3) != 2 {
		t.Errorf("Diff(5, 3) = %d, want 2", Diff(5, 3))
	}
	if Diff(3, 5) != -2 {
		t.Errorf("Diff(3, 5) = %d, want -2", Diff(3, 5))
	}
	if Diff(0, 0xFFFFFFFF) != 1 {
		t.Errorf("Diff(0, 0xFFFFFFFF) = %d, want 1", Diff(0, 0xFFFFFFFF))
	}
}
