package voice

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnsupported is returned when no recognition or synthesis engine is
	// available.
	ErrUnsupported = errors.New("voice engine not supported")

	// ErrBusy is returned when a voice input mode is started while the other
	// one is active.
	ErrBusy = errors.New("voice input busy")

	// ErrNoSession is returned when events are pushed with no active session.
	ErrNoSession = errors.New("no active recognition session")

	// ErrSessionOverflow is returned when a session's event buffer is full.
	ErrSessionOverflow = errors.New("recognition session buffer full")
)

// RecognitionConfig configures a recognition session.
type RecognitionConfig struct {
	// Lang is a BCP 47 tag; empty asks the engine to detect the language.
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}

// EventType discriminates recognition events.
type EventType string

const (
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// Event is emitted by a recognition session.
type Event struct {
	Type EventType `json:"type"`

	// Transcript, Final and Lang are set on results. Lang is the detected
	// language when the engine reports one.
	Transcript string `json:"transcript,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Lang       string `json:"lang,omitempty"`

	// Err is set on errors.
	Err error `json:"-"`
}

// RecognitionSession is one running recognition. Its event channel closes
// after the End event.
type RecognitionSession interface {
	Events() <-chan Event
	Stop()
}

// Recognizer starts recognition sessions.
type Recognizer interface {
	Start(ctx context.Context, cfg RecognitionConfig) (RecognitionSession, error)
}

const feedBufferSize = 64

// Feed is a Recognizer whose sessions are driven by pushed events. A client
// that owns the actual recognition engine (a browser, a test) reads the
// active configuration and pushes results while Machine owns the state.
type Feed struct {
	mu      sync.Mutex
	current *feedSession
}

// NewFeed returns an idle Feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Start opens a new session, ending any previous one.
func (f *Feed) Start(_ context.Context, cfg RecognitionConfig) (RecognitionSession, error) {
	s := &feedSession{
		cfg:    cfg,
		events: make(chan Event, feedBufferSize),
	}

	f.mu.Lock()
	prev := f.current
	f.current = s
	f.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return s, nil
}

// Active returns the configuration of the running session.
func (f *Feed) Active() (RecognitionConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.current.isClosed() {
		return RecognitionConfig{}, false
	}
	return f.current.cfg, true
}

// Push delivers an event to the running session. An End event closes it.
func (f *Feed) Push(ev Event) error {
	f.mu.Lock()
	s := f.current
	f.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	if err := s.push(ev); err != nil {
		return err
	}
	if ev.Type == EventEnd {
		f.mu.Lock()
		if f.current == s {
			f.current = nil
		}
		f.mu.Unlock()
	}
	return nil
}

type feedSession struct {
	cfg RecognitionConfig

	mu     sync.Mutex
	closed bool
	events chan Event
}

func (s *feedSession) Events() <-chan Event {
	return s.events
}

func (s *feedSession) Stop() {
	_ = s.push(Event{Type: EventEnd})
}

func (s *feedSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *feedSession) push(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoSession
	}

	if ev.Type == EventEnd {
		// A full buffer drops End; the closed channel still ends the session.
		select {
		case s.events <- ev:
		default:
		}
		s.closed = true
		close(s.events)
		return nil
	}

	select {
	case s.events <- ev:
		return nil
	default:
		return ErrSessionOverflow
	}
}
