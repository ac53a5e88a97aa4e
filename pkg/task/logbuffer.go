package task

import "sync"

// Line is one captured worker log line. Seq is an absolute counter that
// keeps growing as old lines are evicted, so a client polling with
// since=N gets a stable view regardless of eviction.
type Line struct {
	Seq  uint64  `json:"seq"`
	Time float64 `json:"ts"`
	Text string  `json:"line"`
}

// LogBuffer is a bounded ring of worker log lines.
type LogBuffer struct {
	mu    sync.Mutex
	max   int
	lines []Line
	start uint64 // Seq of lines[0]
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 1
	}
	return &LogBuffer{max: max}
}

// Append records a line and returns it with its sequence number.
func (b *LogBuffer) Append(text string) Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := Line{Seq: b.start + uint64(len(b.lines)), Time: nowEpoch(), Text: text}
	b.lines = append(b.lines, l)
	if len(b.lines) > b.max {
		drop := len(b.lines) - b.max
		b.lines = append([]Line(nil), b.lines[drop:]...)
		b.start += uint64(drop)
	}
	return l
}

// Since returns all retained lines with Seq >= seq, plus the sequence
// number the caller should poll with next.
func (b *LogBuffer) Since(seq uint64) ([]Line, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.start + uint64(len(b.lines))
	if seq >= next {
		return nil, next
	}
	from := 0
	if seq > b.start {
		from = int(seq - b.start)
	}
	out := append([]Line(nil), b.lines[from:]...)
	return out, next
}

// Next returns the sequence number the next appended line will get.
func (b *LogBuffer) Next() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start + uint64(len(b.lines))
}
