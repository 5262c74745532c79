package voice_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/papercomputeco/parley/pkg/voice"
)

// sink collects text written to the chat input.
type sink struct {
	mu    sync.Mutex
	texts []string
}

func (s *sink) write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *sink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// translator records calls; a non-nil gate blocks each call until closed.
type translator struct {
	mu    sync.Mutex
	calls [][3]string
	gate  chan struct{}
	out   func(text, source, target string) string
}

func (t *translator) TranslateOrOriginal(ctx context.Context, text, source, target string) string {
	t.mu.Lock()
	t.calls = append(t.calls, [3]string{text, source, target})
	gate := t.gate
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return text
		}
	}
	if t.out != nil {
		return t.out(text, source, target)
	}
	return "[" + target + "] " + text
}

func (t *translator) recorded() [][3]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][3]string(nil), t.calls...)
}

func (t *translator) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// synthesizer records utterances; Speak blocks until ctx is cancelled or
// finish is called. A cancelled Speak keeps playing for linger before it
// returns, like an audio device draining its buffer.
type synthesizer struct {
	catalog []voice.Voice
	linger  time.Duration

	mu        sync.Mutex
	spoken    []voice.Utterance
	finished  chan struct{}
	failWith  error
	playing   int
	maxActive int
}

func newSynthesizer(catalog ...voice.Voice) *synthesizer {
	return &synthesizer{catalog: catalog, finished: make(chan struct{})}
}

func (s *synthesizer) Voices(context.Context) ([]voice.Voice, error) {
	return s.catalog, nil
}

func (s *synthesizer) Speak(ctx context.Context, u voice.Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	finished := s.finished
	failWith := s.failWith
	s.playing++
	s.maxActive = max(s.maxActive, s.playing)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.playing--
		s.mu.Unlock()
	}()

	if failWith != nil {
		return failWith
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		time.Sleep(s.linger)
		return ctx.Err()
	}
}

// mostConcurrent returns the largest number of Speak calls seen in flight at
// once.
func (s *synthesizer) mostConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

func (s *synthesizer) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.finished)
	s.finished = make(chan struct{})
}

func (s *synthesizer) utterances() []voice.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]voice.Utterance(nil), s.spoken...)
}

// failingRecognizer refuses to start.
type failingRecognizer struct{}

var errMicrophone = errors.New("microphone not allowed")

func (failingRecognizer) Start(context.Context, voice.RecognitionConfig) (voice.RecognitionSession, error) {
	return nil, errMicrophone
}
