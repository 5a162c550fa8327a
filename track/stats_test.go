package track

import (
	"math/rand"
	"testing"
)

func TestStatsObserve(t *testing.T) {
	var s Stats
	for _, v := range []int{10, 50, 30} {
		s.Observe(v)
	}
	if s.PeakViewers != 50 {
		t.Errorf("peak = %d, want 50", s.PeakViewers)
	}
	if s.TotalViewers != 90 || s.SampleCount != 3 {
		t.Errorf("total/samples = %d/%d, want 90/3", s.TotalViewers, s.SampleCount)
	}
	if s.Average() != 30 {
		t.Errorf("avg = %d, want 30", s.Average())
	}
}

func TestStatsAverageRoundsHalfUp(t *testing.T) {
	cases := []struct {
		total, samples, want int
	}{
		{5, 2, 3},   // 2.5 rounds up
		{3, 2, 2},   // 1.5 rounds up
		{7, 3, 2},   // 2.33 rounds down
		{8, 3, 3},   // 2.67 rounds up
		{10, 4, 3},  // 2.5 rounds up
		{100, 1, 100},
		{0, 3, 0},
	}
	for _, c := range cases {
		s := Stats{TotalViewers: c.total, SampleCount: c.samples}
		if got := s.Average(); got != c.want {
			t.Errorf("Average(total=%d, samples=%d) = %d, want %d", c.total, c.samples, got, c.want)
		}
	}
}

func TestStatsAverageZeroSamples(t *testing.T) {
	var s Stats
	if s.Average() != 0 {
		t.Errorf("avg = %d, want 0 with no samples", s.Average())
	}
}

// Total and peak must not depend on the order samples arrive in.
func TestStatsOrderInsensitive(t *testing.T) {
	samples := []int{3, 17, 0, 42, 42, 5, 9}
	var want Stats
	for _, v := range samples {
		want.Observe(v)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]int(nil), samples...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		var got Stats
		for _, v := range shuffled {
			got.Observe(v)
		}
		if got != want {
			t.Fatalf("stats depend on sample order: got %+v, want %+v", got, want)
		}
	}
}
