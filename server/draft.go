package server

import (
	"strings"
	"sync"
)

// Draft is the chat input voice recognition writes into. Sending takes it.
type Draft struct {
	mu   sync.Mutex
	text string
}

// NewDraft returns an empty Draft.
func NewDraft() *Draft {
	return &Draft{}
}

// Write appends recognised text, separated from existing input by a space.
// It is a voice.InputSink.
func (d *Draft) Write(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text != "" {
		d.text += " "
	}
	d.text += text
}

// Text returns the current input.
func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Take returns the current input and empties the draft.
func (d *Draft) Take() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	text := d.text
	d.text = ""
	return text
}

// Restore puts text taken by Take back in front of anything written since.
func (d *Draft) Restore(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text != "" {
		text += " " + d.text
	}
	d.text = text
}
