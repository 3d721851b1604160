package ringstat

import "testing"

func TestRing_PercentileInterpolation(t *testing.T) {
	r := New(10)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		r.Add(v)
	}
	if p50 := r.Percentile(50); p50 != 30 {
		t.Fatalf("expected median 30, got %f", p50)
	}
	if p0 := r.Percentile(0); p0 != 10 {
		t.Fatalf("expected p0 10, got %f", p0)
	}
	if p100 := r.Percentile(100); p100 != 50 {
		t.Fatalf("expected p100 50, got %f", p100)
	}
}

func TestRing_BoundedEviction(t *testing.T) {
	r := New(3)
	for i := 1; i <= 5; i++ {
		r.Add(float64(i))
	}
	if r.Len() != 3 {
		t.Fatalf("expected bounded length 3, got %d", r.Len())
	}
	if r.TotalObserved() != 5 {
		t.Fatalf("expected lifetime total 5, got %d", r.TotalObserved())
	}
	if got := r.Percentile(0); got != 3 {
		t.Fatalf("expected oldest surviving sample 3, got %f", got)
	}
}

func TestRing_EmptyPercentile(t *testing.T) {
	r := New(5)
	if got := r.Percentile(95); got != 0 {
		t.Fatalf("expected 0 on empty ring, got %f", got)
	}
}
