package grid

// ring is a fixed-capacity FIFO of rows. Pushing into a full ring
// evicts the oldest row.
type ring struct {
	buf   [][]Cell
	start int
	n     int
}

func newRing(capacity int) *ring {
	if capacity < 0 {
		capacity = 0
	}
	return &ring{buf: make([][]Cell, capacity)}
}

func (r *ring) capacity() int {
	return len(r.buf)
}

func (r *ring) len() int {
	return r.n
}

func (r *ring) push(row []Cell) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = row
		r.n++
		return
	}
	r.buf[r.start] = row
	r.start = (r.start + 1) % len(r.buf)
}

// lines returns the held rows, oldest first. The row slices are shared.
func (r *ring) lines() [][]Cell {
	out := make([][]Cell, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
