package prob

import "testing"

func TestAdaptProbNoObservationsIsIdentity(t *testing.T) {
	for _, p := range []uint8{1, 50, 128, 200, 255} {
		got := AdaptProb(p, 0, 0, ModeTreeMax, defaultUpdateFactor)
		if got != p {
			t.Errorf("AdaptProb(%d,0,0) = %d, want %d", p, got, p)
		}
	}
}

func TestAdaptProbBalancedCountsMovesTowardCenter(t *testing.T) {
	for _, p := range []uint8{10, 60, 128, 190, 250} {
		got := AdaptProb(p, 5, 5, ModeTreeMax, defaultUpdateFactor)
		distBefore := absInt(int(p) - 128)
		distAfter := absInt(int(got) - 128)
		if distAfter > distBefore {
			t.Errorf("AdaptProb(%d,5,5) = %d: distance from 128 grew (%d -> %d)", p, got, distBefore, distAfter)
		}
	}
}

func TestAdaptProbIdempotentAtMatchingCounts(t *testing.T) {
	// p = 128 means P(bit==0) = 128/256 = 1/2. With ct >= MAX and
	// c0/(c0+c1) == p/256 exactly, adaptation should be a no-op.
	p := uint8(128)
	c0, c1 := uint32(ModeTreeMax), uint32(ModeTreeMax)
	got := AdaptProb(p, c0, c1, ModeTreeMax, defaultUpdateFactor)
	if got != p {
		t.Errorf("AdaptProb(%d,%d,%d) = %d, want %d (idempotent)", p, c0, c1, got, p)
	}

	// p = 64 means P(bit==0) = 64/256 = 1/4.
	p = 64
	c0, c1 = uint32(ModeTreeMax)/4, uint32(ModeTreeMax)*3/4
	got = AdaptProb(p, c0, c1, ModeTreeMax, defaultUpdateFactor)
	if got != p {
		t.Errorf("AdaptProb(%d,%d,%d) = %d, want %d (idempotent)", p, c0, c1, got, p)
	}
}

func TestAdaptProbClampsToValidRange(t *testing.T) {
	got := AdaptProb(1, 1000, 0, CoefTokenMax, defaultUpdateFactor)
	if got < 1 || got > 255 {
		t.Errorf("AdaptProb produced out-of-range probability %d", got)
	}
	got = AdaptProb(255, 0, 1000, CoefTokenMax, defaultUpdateFactor)
	if got < 1 || got > 255 {
		t.Errorf("AdaptProb produced out-of-range probability %d", got)
	}
}

func TestContextCloneIsIndependent(t *testing.T) {
	c := Default()
	clone := c.Clone()
	clone.Skip[0] = 5
	if c.Skip[0] == 5 {
		t.Errorf("mutating clone affected original")
	}
}

func TestContextAdaptLeavesOriginalUntouched(t *testing.T) {
	c := Default()
	var counts Counts
	counts.Skip[0] = Pair{C0: 3, C1: 17}

	adapted := c.Adapt(&counts, defaultUpdateFactor)

	if c.Skip[0] != 128 {
		t.Errorf("Adapt mutated the receiver: Skip[0] = %d, want 128", c.Skip[0])
	}
	if adapted.Skip[0] == 128 {
		t.Errorf("Adapt did not move the adapted copy away from the default")
	}
}

func TestContextAdaptUsesFirstInterUpdateFactor(t *testing.T) {
	c := Default()
	var counts Counts
	counts.Skip[0] = Pair{C0: 0, C1: 20}

	steady := c.Adapt(&counts, defaultUpdateFactor)
	aggressive := c.Adapt(&counts, firstInterUpdateFactor)

	// The steady-state update factor (128) is larger than the
	// first-inter-frame factor (112), so it should move further from
	// the unadapted default for the same counts.
	if d := absInt(int(steady.Skip[0]) - 128); d < absInt(int(aggressive.Skip[0])-128) {
		t.Errorf("expected defaultUpdateFactor to move further than firstInterUpdateFactor: steady=%d aggressive=%d", steady.Skip[0], aggressive.Skip[0])
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
