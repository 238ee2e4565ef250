package audioout_test

import (
	"math"
	"testing"

	audioout "github.com/Lundis/go-audioout"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSynchronizerPlayStop(t *testing.T) {
	var now int64
	s := audioout.NewSynchronizer(func() int64 { return now })

	if p := s.Position(); !near(p, 0) {
		t.Fatalf("initial position = %f, want 0", p)
	}

	s.Play()
	now += 2_000_000
	if p := s.Position(); !near(p, 2) {
		t.Fatalf("position after 2s of playback = %f, want 2", p)
	}

	s.Stop()
	now += 5_000_000
	if p := s.Position(); !near(p, 2) {
		t.Fatalf("position advanced while stopped: %f", p)
	}

	// Resuming picks up from the stored position, not from the clock delta
	// accumulated while stopped.
	s.Play()
	now += 1_000_000
	if p := s.Position(); !near(p, 3) {
		t.Fatalf("position after resume = %f, want 3", p)
	}
}

func TestSynchronizerRedundantTransitions(t *testing.T) {
	var now int64
	s := audioout.NewSynchronizer(func() int64 { return now })

	s.Play()
	now += 1_000_000
	s.Play() // must not re-capture the clock reference
	if p := s.Position(); !near(p, 1) {
		t.Fatalf("redundant Play reset the position: %f", p)
	}

	s.Stop()
	s.Stop()
	if p := s.Position(); !near(p, 1) {
		t.Fatalf("redundant Stop changed the position: %f", p)
	}
}

func TestSynchronizerSeek(t *testing.T) {
	var now int64
	s := audioout.NewSynchronizer(func() int64 { return now })

	var handled []float64
	s.SetSeekHandler(func(seconds float64) {
		handled = append(handled, seconds)
	})

	// Seeking while stopped just stores the offset.
	s.Seek(30)
	if p := s.Position(); !near(p, 30) {
		t.Fatalf("position after stopped seek = %f, want 30", p)
	}

	// Seeking while playing refreshes the clock reference too.
	s.Play()
	now += 4_000_000
	s.Seek(10)
	if p := s.Position(); !near(p, 10) {
		t.Fatalf("position right after playing seek = %f, want 10", p)
	}
	now += 500_000
	if p := s.Position(); !near(p, 10.5) {
		t.Fatalf("position 0.5s after playing seek = %f, want 10.5", p)
	}

	if len(handled) != 2 || handled[0] != 30 || handled[1] != 10 {
		t.Fatalf("seek handler calls = %v, want [30 10]", handled)
	}
}
