package market

// Series is an append-only window backed by a ring buffer. Once its length
// exceeds max, the oldest entries are dropped until keep remain plus the
// newest one, so trimming costs only the removed entries.
type Series[T any] struct {
	buf  []T
	head int
	size int
	max  int
	keep int
}

func NewSeries[T any](max, keep int) *Series[T] {
	if max <= 0 {
		max = 1
	}
	if keep < 0 || keep >= max {
		keep = max - 1
	}
	return &Series[T]{
		buf:  make([]T, max+1),
		max:  max,
		keep: keep,
	}
}

func (s *Series[T]) Push(v T) {
	s.buf[(s.head+s.size)%len(s.buf)] = v
	s.size++
	if s.size > s.max {
		s.drop(s.max - s.keep)
	}
}

func (s *Series[T]) drop(n int) {
	if n > s.size {
		n = s.size
	}
	var zero T
	for i := 0; i < n; i++ {
		s.buf[s.head] = zero
		s.head = (s.head + 1) % len(s.buf)
	}
	s.size -= n
}

func (s *Series[T]) Len() int {
	return s.size
}

// Last returns the newest entry.
func (s *Series[T]) Last() (T, bool) {
	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.buf[(s.head+s.size-1)%len(s.buf)], true
}

// At returns the i-th entry counting from the oldest.
func (s *Series[T]) At(i int) T {
	if i < 0 || i >= s.size {
		panic("market: series index out of range")
	}
	return s.buf[(s.head+i)%len(s.buf)]
}

// Values copies the window, oldest first.
func (s *Series[T]) Values() []T {
	out := make([]T, s.size)
	for i := range out {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}
