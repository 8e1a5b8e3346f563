// Package indicators provides the rolling-window statistics and
// normalization primitives every crowding feature is built from.
//
// All rolling functions are trailing: the value at position i uses only
// positions i-window+1..i. Absent observations inside a window are skipped,
// never treated as zero.
package indicators

import "github.com/rustyeddy/crowding/series"

// Window is a streaming fixed-length window over tagged values.
// It is deterministic and carries no state beyond its last Size updates.
type Window struct {
	size  int
	buf   []series.Value
	next  int
	count int
}

// NewWindow returns a window holding the last size updates.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, buf: make([]series.Value, size)}
}

// Size returns the window length in positions.
func (w *Window) Size() int {
	return w.size
}

// Reset clears all internal state.
func (w *Window) Reset() {
	for i := range w.buf {
		w.buf[i] = series.Absent
	}
	w.next = 0
	w.count = 0
}

// Update consumes the next position.
func (w *Window) Update(v series.Value) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Full reports whether Size positions have been seen.
func (w *Window) Full() bool {
	return w.count == w.size
}

// Ready reports whether at least minObs present values are in the window.
func (w *Window) Ready(minObs int) bool {
	return w.Present() >= minObs
}

// Present returns the number of present values in the window.
func (w *Window) Present() int {
	n := 0
	for i := 0; i < w.count; i++ {
		if w.buf[i].OK {
			n++
		}
	}
	return n
}

// Values appends the present values, oldest first, to dst.
func (w *Window) Values(dst []float64) []float64 {
	start := 0
	if w.count == w.size {
		start = w.next
	}
	for k := 0; k < w.count; k++ {
		v := w.buf[(start+k)%w.size]
		if v.OK {
			dst = append(dst, v.X)
		}
	}
	return dst
}
