package forensic

import (
	"testing"
)

func TestFlagFrames_AbsoluteThreshold(t *testing.T) {
	scores := make([]float64, 24)
	for i := range scores {
		scores[i] = 5.0
	}
	scores[7] = 31.0
	scores[14] = 27.5
	scores[22] = 26.0

	flagged := FlagFrames(scores, 25.0, 0, 0)
	if len(flagged) != 3 {
		t.Fatalf("expected 3 flagged frames, got %d", len(flagged))
	}
	for i, want := range []int{7, 14, 22} {
		if flagged[i].Index != want {
			t.Fatalf("flagged[%d] = %d, want %d (ascending order)", i, flagged[i].Index, want)
		}
	}
}

func TestFlagFrames_CapKeepsHighestScores(t *testing.T) {
	scores := []float64{30, 2, 40, 2, 26, 2, 35, 2}

	flagged := FlagFrames(scores, 25.0, 0, 3)
	if len(flagged) != 3 {
		t.Fatalf("expected cap at 3, got %d", len(flagged))
	}
	// Index 4 (score 26) is the lowest of the four and must be dropped;
	// survivors stay in ascending index order.
	for i, want := range []int{0, 2, 6} {
		if flagged[i].Index != want {
			t.Fatalf("flagged[%d] = %d, want %d", i, flagged[i].Index, want)
		}
	}
}

func TestFlagFrames_DiscontinuityAgainstNeighbors(t *testing.T) {
	// Frame 5 sits well below the absolute threshold but far above its
	// neighbors' baseline.
	scores := []float64{4, 4, 4, 4, 4, 15, 4, 4, 4, 4}

	flagged := FlagFrames(scores, 25.0, 2.5, 0)
	if len(flagged) != 1 || flagged[0].Index != 5 {
		t.Fatalf("expected only frame 5 flagged, got %v", flagged)
	}
}

func TestFlagFrames_DiscontinuityNeedsRealBaseline(t *testing.T) {
	// Tiny scores everywhere: the delta rule must not fire on noise when
	// the baseline is below the guard floor.
	scores := []float64{0.1, 0.1, 0.9, 0.1, 0.1}

	if flagged := FlagFrames(scores, 25.0, 2.5, 0); len(flagged) != 0 {
		t.Fatalf("expected no flags on near-zero baseline, got %v", flagged)
	}
}

func TestFlagFrames_CleanInput(t *testing.T) {
	scores := []float64{3, 4, 5, 4, 3}
	if flagged := FlagFrames(scores, 25.0, 2.5, 3); len(flagged) != 0 {
		t.Fatalf("expected no flags, got %v", flagged)
	}
}

func TestNeighborMean_Edges(t *testing.T) {
	scores := []float64{10, 20, 30, 40, 50}
	if got := neighborMean(scores, 0); got != 25 {
		t.Fatalf("left edge baseline = %v, want 25", got)
	}
	if got := neighborMean(scores, 2); got != 30 {
		t.Fatalf("interior baseline = %v, want 30", got)
	}
	if got := neighborMean(scores, 4); got != 35 {
		t.Fatalf("right edge baseline = %v, want 35", got)
	}
}
