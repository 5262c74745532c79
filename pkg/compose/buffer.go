package compose

import (
	"fmt"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Buffer holds the attachments waiting for the next send.
type Buffer struct {
	mu    sync.Mutex
	items []llm.Attachment
}

// Add appends attachments to the buffer.
func (b *Buffer) Add(a ...llm.Attachment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, a...)
}

// Remove drops the attachment at index i.
func (b *Buffer) Remove(i int) (llm.Attachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.items) {
		return llm.Attachment{}, fmt.Errorf("attachment index %d out of range [0, %d)", i, len(b.items))
	}
	removed := b.items[i]
	b.items = append(b.items[:i:i], b.items[i+1:]...)
	return removed, nil
}

// Pending returns a copy of the buffered attachments.
func (b *Buffer) Pending() []llm.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Attachment(nil), b.items...)
}

// Len returns the number of buffered attachments.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Take returns the buffered attachments and empties the buffer.
func (b *Buffer) Take() []llm.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}
