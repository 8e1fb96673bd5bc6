package editor

// History holds past command lines for arrow-key recall.
type History struct {
	lines []string
	limit int
}

// NewHistory creates a history with the given size limit.
func NewHistory(limit int) *History {
	return &History{
		lines: make([]string, 0, limit),
		limit: limit,
	}
}

// Add appends a command, skipping empties and duplicates of the last
// entry.
func (h *History) Add(cmd string) {
	if cmd == "" {
		return
	}
	if len(h.lines) > 0 && h.lines[len(h.lines)-1] == cmd {
		return
	}
	h.lines = append(h.lines, cmd)
	if len(h.lines) > h.limit {
		h.lines = h.lines[len(h.lines)-h.limit:]
	}
}

// Len returns the number of stored lines.
func (h *History) Len() int {
	return len(h.lines)
}

// At returns the i-th stored line, oldest first.
func (h *History) At(i int) string {
	return h.lines[i]
}

// Get returns a copy of the history, oldest first.
func (h *History) Get() []string {
	result := make([]string, len(h.lines))
	copy(result, h.lines)
	return result
}
