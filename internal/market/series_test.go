package market

import "testing"

func TestSeriesTrimsToWatermark(t *testing.T) {
	s := NewSeries[int](10, 4)
	for i := 1; i <= 10; i++ {
		s.Push(i)
	}
	if s.Len() != 10 {
		t.Fatalf("expected 10 entries before trim, got %d", s.Len())
	}
	s.Push(11)
	if s.Len() != 5 {
		t.Fatalf("expected 5 entries after trim, got %d", s.Len())
	}
	got := s.Values()
	want := []int{7, 8, 9, 10, 11}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSeriesLengthBound(t *testing.T) {
	const max, keep = 1000, 500
	s := NewSeries[float64](max, keep)
	sinceTrim := 0
	for n := 1; n <= 5000; n++ {
		s.Push(float64(n))
		sinceTrim++
		if s.Len() > max {
			t.Fatalf("length %d exceeds max after %d pushes", s.Len(), n)
		}
		if n <= max {
			if s.Len() != n {
				t.Fatalf("expected length %d, got %d", n, s.Len())
			}
			continue
		}
		if s.Len() == keep+1 {
			sinceTrim = 1
		}
		if s.Len() != keep+sinceTrim {
			t.Fatalf("after %d pushes expected %d, got %d", n, keep+sinceTrim, s.Len())
		}
	}
	last, ok := s.Last()
	if !ok || last != 5000 {
		t.Fatalf("expected newest 5000, got %v (ok=%v)", last, ok)
	}
	if s.At(0) != 5000-float64(s.Len())+1 {
		t.Fatalf("expected contiguous window, oldest %v len %d", s.At(0), s.Len())
	}
}

func TestSeriesEmpty(t *testing.T) {
	s := NewSeries[int64](3, 1)
	if _, ok := s.Last(); ok {
		t.Fatalf("expected empty series to have no last value")
	}
	if len(s.Values()) != 0 {
		t.Fatalf("expected no values")
	}
}

func TestSeriesAtPanicsOutOfRange(t *testing.T) {
	s := NewSeries[int](3, 1)
	s.Push(1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out of range index")
		}
	}()
	_ = s.At(1)
}
