package cli

import (
	"slices"
	"strings"
	"sync"
)

// Transcript keeps the last lines written to it. It is an io.Writer, so a
// slog handler can log into it while a frame shows the lines.
type Transcript struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewTranscript keeps up to maxLines lines.
func NewTranscript(maxLines int) *Transcript {
	return &Transcript{max: max(maxLines, 1)}
}

// Write splits p into lines.
func (t *Transcript) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	t.Add(strings.Split(text, "\n")...)
	return len(p), nil
}

func (t *Transcript) Add(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, lines...)
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = slices.Delete(t.lines, 0, over)
	}
}

// Lines returns a copy of the kept lines, oldest first.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.lines)
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
}
