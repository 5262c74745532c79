package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/logger"
)

// DefaultSilenceTimeout is the pause after which dictation ends a sentence.
const DefaultSilenceTimeout = 1500 * time.Millisecond

// State is the voice input mode.
type State int

const (
	StateIdle State = iota
	StateListening
	StateDictating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateDictating:
		return "dictating"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Translator translates text, answering with the original on failure.
type Translator interface {
	TranslateOrOriginal(ctx context.Context, text, source, target string) string
}

// InputSink receives recognised text destined for the chat input.
type InputSink func(text string)

// MachineConfig configures voice input.
type MachineConfig struct {
	// Language is the recognition language, a BCP 47 tag such as "ru-RU".
	Language string

	// AutoDetect lets one-shot input detect the spoken language and
	// translate it to TranslateTo.
	AutoDetect  bool
	TranslateTo string

	SilenceTimeout time.Duration
}

// Machine is the voice input state machine. It is Idle, Listening (one
// shot) or Dictating (continuous, segmented by silence).
type Machine struct {
	recognizer Recognizer
	translator Translator
	sink       InputSink
	config     MachineConfig
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	session RecognitionSession

	// gen invalidates goroutines and timers of finished sessions.
	gen      uint64
	timerSeq uint64
	timer    *time.Timer

	dictation string
	interim   string
	lastErr   error
}

// NewMachine returns an idle Machine. recognizer may be nil, in which case
// every start fails with ErrUnsupported; translator may be nil to disable
// auto-detect translation.
func NewMachine(recognizer Recognizer, translator Translator, sink InputSink, config MachineConfig, logger *zap.Logger) *Machine {
	if config.SilenceTimeout <= 0 {
		config.SilenceTimeout = DefaultSilenceTimeout
	}
	if sink == nil {
		sink = func(string) {}
	}
	return &Machine{
		recognizer: recognizer,
		translator: translator,
		sink:       sink,
		config:     config,
		logger:     logger,
	}
}

// State returns the current mode.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dictation returns the text accumulated by the current or last dictation.
func (m *Machine) Dictation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictation
}

// Interim returns the latest interim fragment while dictating.
func (m *Machine) Interim() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interim
}

// LastError returns the last engine failure, cleared when a mode starts.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Listen starts one-shot input. The first result is written to the sink,
// translated when auto-detect is on and the spoken language differs from the
// target. Listen returns once the session has started.
func (m *Machine) Listen(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return ErrBusy
	}
	if m.recognizer == nil {
		m.lastErr = ErrUnsupported
		return ErrUnsupported
	}

	cfg := RecognitionConfig{Lang: m.config.Language}
	if m.config.AutoDetect {
		cfg.Lang = ""
	}
	session, err := m.recognizer.Start(ctx, cfg)
	if err != nil {
		m.lastErr = err
		m.logger.Warn("voice recognition failed to start", zap.Error(err))
		return fmt.Errorf("start recognition: %w", err)
	}

	m.gen++
	m.state = StateListening
	m.session = session
	m.lastErr = nil
	go m.runListen(context.WithoutCancel(ctx), session, m.gen)
	return nil
}

func (m *Machine) runListen(ctx context.Context, session RecognitionSession, gen uint64) {
	defer m.finishListen(gen)

	for ev := range session.Events() {
		switch ev.Type {
		case EventResult:
			if !m.current(gen) {
				return
			}
			if !ev.Final {
				continue
			}
			text := m.renderTranscript(ctx, ev)
			if !m.current(gen) {
				return
			}
			m.logger.Debug("voice input recognised", zap.String("preview", logger.Preview(text, 60)))
			m.sink(text)
			session.Stop()
			return
		case EventError:
			m.fail(gen, ev.Err)
			return
		case EventEnd:
			return
		}
	}
}

// renderTranscript applies auto-detect translation to a one-shot result.
func (m *Machine) renderTranscript(ctx context.Context, ev Event) string {
	if !m.config.AutoDetect || m.config.TranslateTo == "" || m.translator == nil {
		return ev.Transcript
	}

	source := PrimarySubtag(ev.Lang)
	if source == "" {
		source = "auto"
	}
	target := PrimarySubtag(m.config.TranslateTo)
	if source == target {
		return ev.Transcript
	}

	translated := m.translator.TranslateOrOriginal(ctx, ev.Transcript, source, target)
	return fmt.Sprintf("🌐 %s\n\n📍 %s → %s", translated, LanguageName(source), LanguageName(target))
}

func (m *Machine) finishListen(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen && m.state == StateListening {
		m.state = StateIdle
		m.session = nil
	}
}

// ToggleDictation starts dictation from Idle or, while Dictating, stops it
// and writes the trimmed accumulated text to the sink.
func (m *Machine) ToggleDictation(ctx context.Context) error {
	m.mu.Lock()

	switch m.state {
	case StateListening:
		m.mu.Unlock()
		return ErrBusy
	case StateDictating:
		text := strings.TrimSpace(m.dictation)
		m.stopLocked()
		m.dictation = ""
		m.mu.Unlock()

		if text != "" {
			m.sink(text)
		}
		return nil
	}
	defer m.mu.Unlock()

	if m.recognizer == nil {
		m.lastErr = ErrUnsupported
		return ErrUnsupported
	}

	session, err := m.recognizer.Start(ctx, m.dictationConfig())
	if err != nil {
		m.lastErr = err
		m.logger.Warn("dictation failed to start", zap.Error(err))
		return fmt.Errorf("start recognition: %w", err)
	}

	m.gen++
	m.state = StateDictating
	m.session = session
	m.dictation = ""
	m.interim = ""
	m.lastErr = nil
	go m.runDictation(context.WithoutCancel(ctx), session, m.gen)
	return nil
}

func (m *Machine) dictationConfig() RecognitionConfig {
	return RecognitionConfig{
		Lang:           m.config.Language,
		Continuous:     true,
		InterimResults: true,
	}
}

func (m *Machine) runDictation(ctx context.Context, session RecognitionSession, gen uint64) {
	for {
		for ev := range session.Events() {
			switch ev.Type {
			case EventResult:
				m.appendFragment(gen, ev)
			case EventError:
				m.fail(gen, ev.Err)
				return
			}
		}

		// The engine ended on its own; keep dictating with a fresh session.
		next, ok := m.restart(ctx, gen)
		if !ok {
			return
		}
		session = next
	}
}

func (m *Machine) restart(ctx context.Context, gen uint64) (RecognitionSession, bool) {
	if !m.dictating(gen) {
		return nil, false
	}

	session, err := m.recognizer.Start(ctx, m.dictationConfig())
	if err != nil {
		m.fail(gen, err)
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state != StateDictating {
		session.Stop()
		return nil, false
	}
	m.session = session
	m.logger.Debug("dictation engine restarted")
	return session, true
}

func (m *Machine) appendFragment(gen uint64, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state != StateDictating {
		return
	}

	if !ev.Final {
		m.interim = ev.Transcript
		return
	}
	m.interim = ""

	fragment := strings.TrimSpace(ev.Transcript)
	if fragment == "" {
		return
	}
	if m.dictation != "" {
		m.dictation += " "
	}
	m.dictation += fragment

	m.armTimerLocked(gen)
}

func (m *Machine) armTimerLocked(gen uint64) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerSeq++
	seq := m.timerSeq
	m.timer = time.AfterFunc(m.config.SilenceTimeout, func() {
		m.terminateSentence(gen, seq)
	})
}

// terminateSentence ends the current sentence after a pause.
func (m *Machine) terminateSentence(gen, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.timerSeq != seq || m.state != StateDictating {
		return
	}

	text := strings.TrimSpace(m.dictation)
	if text == "" || strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
		return
	}
	m.dictation = text + "."
}

func (m *Machine) fail(gen uint64, err error) {
	if err == nil {
		err = ErrUnsupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.logger.Warn("voice recognition error",
		zap.Stringer("state", m.state),
		zap.Error(err),
	)
	m.lastErr = err
	m.stopLocked()
}

// Stop ends any active mode without writing to the sink.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Machine) stopLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.session != nil {
		m.session.Stop()
		m.session = nil
	}
	m.interim = ""
	m.state = StateIdle
}

func (m *Machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func (m *Machine) dictating(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.state == StateDictating
}
