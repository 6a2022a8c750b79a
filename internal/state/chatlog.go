package state

import "sync"

// ChatLog is an append-only, ordered list of chat lines.
type ChatLog struct {
	mu    sync.RWMutex
	lines []string
}

func NewChatLog() *ChatLog {
	return &ChatLog{lines: make([]string, 0)}
}

// Append adds a line and returns the new length.
func (c *ChatLog) Append(line string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return len(c.lines)
}

// Lines returns a copy of the log.
func (c *ChatLog) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Replace swaps the whole log, used when a mirror receives the history.
func (c *ChatLog) Replace(lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(make([]string, 0, len(lines)), lines...)
}

func (c *ChatLog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}
