package tui

// sparkRunes maps levels 0..7 to block elements.
var sparkRunes = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// History is a fixed-capacity window over the most recent samples.
type History struct {
	buf   []float64
	next  int
	count int
}

// NewHistory creates a history keeping up to n samples.
func NewHistory(n int) *History {
	return &History{buf: make([]float64, max(n, 1))}
}

// Add appends a sample, dropping the oldest once full.
func (h *History) Add(v float64) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	h.count = min(h.count+1, len(h.buf))
}

// Len returns the number of samples held.
func (h *History) Len() int { return h.count }

// Values returns the samples oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.count)
	first := (h.next - h.count + len(h.buf)) % len(h.buf)
	for i := range out {
		out[i] = h.buf[(first+i)%len(h.buf)]
	}
	return out
}

// Sparkline renders percentages (0..100) one rune per sample.
func Sparkline(values []float64) string {
	runes := make([]rune, len(values))
	for i, v := range values {
		level := int(min(max(v, 0), 100) / 100 * 7)
		runes[i] = sparkRunes[level]
	}
	return string(runes)
}
