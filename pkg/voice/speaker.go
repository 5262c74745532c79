package voice

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Utterance is one synthesis request.
type Utterance struct {
	Text  string
	Lang  string
	Voice *Voice
	Rate  float64
	Pitch float64
}

// Synthesizer speaks text. Speak blocks until playback ends, fails, or ctx
// is cancelled.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) error
}

// SpeakerConfig configures voice output.
type SpeakerConfig struct {
	// Language is the voice language, a BCP 47 tag such as "en-US".
	Language string

	// SourceLanguage is the language replies are written in. Replies are
	// translated when it differs from Language.
	SourceLanguage string

	Speed         float64
	Gender        Gender
	FavoriteVoice string
}

// Speaker reads messages aloud, one at a time.
type Speaker struct {
	synth      Synthesizer
	translator Translator
	config     SpeakerConfig
	logger     *zap.Logger

	mu          sync.Mutex
	gen         uint64
	speaking    int
	translating bool
	cancel      context.CancelFunc
	// done is closed when the most recently started run has returned.
	done chan struct{}
}

// NewSpeaker returns an idle Speaker. translator may be nil to speak replies
// untranslated.
func NewSpeaker(synth Synthesizer, translator Translator, config SpeakerConfig, logger *zap.Logger) *Speaker {
	if config.Speed <= 0 {
		config.Speed = 1.0
	}
	if config.Gender == "" {
		config.Gender = GenderFemale
	}
	return &Speaker{
		synth:      synth,
		translator: translator,
		config:     config,
		logger:     logger,
		speaking:   -1,
	}
}

// Toggle speaks the message at index, or stops it if it is already being
// spoken. Any other message being spoken is cancelled first. Toggle returns
// once playback has been scheduled.
func (s *Speaker) Toggle(ctx context.Context, index int, text string) error {
	if s.synth == nil {
		return ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speaking == index {
		s.stopLocked()
		return nil
	}
	s.stopLocked()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.speaking = index
	s.cancel = cancel
	prev, done := s.done, make(chan struct{})
	s.done = done
	go s.run(runCtx, s.gen, index, text, prev, done)
	return nil
}

// Stop cancels any playback.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Speaking returns the index being spoken.
func (s *Speaker) Speaking() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking, s.speaking >= 0
}

// Translating reports whether the current message is being translated.
func (s *Speaker) Translating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translating
}

func (s *Speaker) stopLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.speaking = -1
	s.translating = false
}

// run speaks text once the previous run, if any, has returned, so two
// utterances never overlap on the synthesizer.
func (s *Speaker) run(ctx context.Context, gen uint64, index int, text string, prev, done chan struct{}) {
	defer func() {
		if prev != nil {
			<-prev
		}
		close(done)
	}()
	defer s.finish(gen)

	target := PrimarySubtag(s.config.Language)
	source := PrimarySubtag(s.config.SourceLanguage)
	if s.translator != nil && source != "" && target != source {
		s.setTranslating(gen, true)
		text = s.translator.TranslateOrOriginal(ctx, text, source, target)
		s.setTranslating(gen, false)
	}
	if !s.current(gen) {
		return
	}

	catalog, err := s.synth.Voices(ctx)
	if err != nil {
		s.logger.Warn("listing voices failed", zap.Error(err))
	}

	u := Utterance{
		Text:  text,
		Lang:  s.config.Language,
		Rate:  s.config.Speed,
		Pitch: s.config.Gender.Pitch(),
	}
	if v, ok := SelectVoice(catalog, VoiceQuery{
		Lang:     s.config.Language,
		Gender:   s.config.Gender,
		Favorite: s.config.FavoriteVoice,
	}); ok {
		u.Voice = &v
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}
	if !s.current(gen) {
		return
	}

	s.logger.Debug("speaking message",
		zap.Int("index", index),
		zap.String("lang", u.Lang),
		zap.Float64("rate", u.Rate),
		zap.Float64("pitch", u.Pitch),
	)
	if err := s.synth.Speak(ctx, u); err != nil && ctx.Err() == nil {
		s.logger.Warn("speech synthesis failed", zap.Int("index", index), zap.Error(err))
	}
}

func (s *Speaker) setTranslating(gen uint64, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.translating = v
	}
}

func (s *Speaker) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Speaker) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.speaking = -1
	s.translating = false
}
