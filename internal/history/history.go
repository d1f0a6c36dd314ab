// Package history provides the bounded undo/redo log of editor snapshots.
package history

import "sync"

// DefaultCapacity is the number of snapshots kept when no capacity is given.
const DefaultCapacity = 50

// Buffer is an ordered, capacity-bounded list of text snapshots plus a cursor.
//
// When the buffer is non-empty the cursor always indexes a valid entry.
// Push truncates everything after the cursor before appending, so a push
// after an undo discards the redo future.
type Buffer struct {
	mu       sync.Mutex
	entries  []string
	cursor   int // -1 when empty
	capacity int
}

// New creates an empty buffer. A capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{cursor: -1, capacity: capacity}
}

// Push records a snapshot as the newest entry and moves the cursor to it.
// When the buffer overflows the oldest snapshot is evicted.
func (b *Buffer) Push(snapshot string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries[:b.cursor+1], snapshot)
	if len(b.entries) > b.capacity {
		drop := len(b.entries) - b.capacity
		b.entries = append([]string(nil), b.entries[drop:]...)
	}
	b.cursor = len(b.entries) - 1
}

// Reset replaces the whole history with a single snapshot.
func (b *Buffer) Reset(snapshot string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = []string{snapshot}
	b.cursor = 0
}

// Undo steps the cursor back and returns the snapshot there. It returns
// false at the oldest entry; that is a boundary, not an error.
func (b *Buffer) Undo() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor <= 0 {
		return "", false
	}
	b.cursor--
	return b.entries[b.cursor], true
}

// Redo steps the cursor forward and returns the snapshot there. It returns
// false when there is nothing to redo.
func (b *Buffer) Redo() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor >= len(b.entries)-1 {
		return "", false
	}
	b.cursor++
	return b.entries[b.cursor], true
}

// CanUndo reports whether Undo would move the cursor.
func (b *Buffer) CanUndo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (b *Buffer) CanRedo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor < len(b.entries)-1
}

// Current returns the snapshot under the cursor.
func (b *Buffer) Current() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor < 0 {
		return "", false
	}
	return b.entries[b.cursor], true
}

// Len returns the number of stored snapshots.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Cursor returns the cursor index, or -1 for an empty buffer.
func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Capacity returns the maximum number of snapshots kept.
func (b *Buffer) Capacity() int {
	return b.capacity
}
