package voice_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/voice"
)

var _ = Describe("Speaker", func() {
	var (
		ctx     context.Context
		synth   *synthesizer
		tr      *translator
		config  voice.SpeakerConfig
		speaker *voice.Speaker
	)

	speakingIndex := func() int {
		i, _ := speaker.Speaking()
		return i
	}

	BeforeEach(func() {
		ctx = context.Background()
		synth = newSynthesizer(
			voice.Voice{ID: "ru1", Name: "Milena", Lang: "ru-RU"},
			voice.Voice{ID: "ru2", Name: "Yuri", Lang: "ru-RU"},
			voice.Voice{ID: "en1", Name: "Samantha", Lang: "en-US"},
		)
		tr = &translator{}
		config = voice.SpeakerConfig{Language: "ru-RU", SourceLanguage: "ru", Speed: 1.25, Gender: voice.GenderMale}
	})

	JustBeforeEach(func() {
		speaker = voice.NewSpeaker(synth, tr, config, zap.NewNop())
	})

	AfterEach(func() {
		speaker.Stop()
	})

	It("speaks with the configured rate, pitch and voice", func() {
		Expect(speaker.Toggle(ctx, 3, "Привет")).To(Succeed())
		Expect(speakingIndex()).To(Equal(3))

		Eventually(synth.utterances).Should(HaveLen(1))
		u := synth.utterances()[0]
		Expect(u.Text).To(Equal("Привет"))
		Expect(u.Lang).To(Equal("ru-RU"))
		Expect(u.Rate).To(Equal(1.25))
		Expect(u.Pitch).To(Equal(0.85))
		Expect(u.Voice).NotTo(BeNil())
		Expect(u.Voice.Name).To(Equal("Yuri"))
		Expect(tr.callCount()).To(BeZero())
	})

	It("returns to idle when playback ends", func() {
		Expect(speaker.Toggle(ctx, 0, "text")).To(Succeed())
		Eventually(synth.utterances).Should(HaveLen(1))

		synth.finish()
		Eventually(speakingIndex).Should(Equal(-1))
	})

	It("returns to idle when playback fails", func() {
		synth.failWith = errors.New("audio device busy")
		Expect(speaker.Toggle(ctx, 0, "text")).To(Succeed())
		Eventually(speakingIndex).Should(Equal(-1))
	})

	It("stops when the message being spoken is toggled again", func() {
		Expect(speaker.Toggle(ctx, 2, "text")).To(Succeed())
		Eventually(synth.utterances).Should(HaveLen(1))

		Expect(speaker.Toggle(ctx, 2, "text")).To(Succeed())
		_, speaking := speaker.Speaking()
		Expect(speaking).To(BeFalse())
		Consistently(synth.utterances).Should(HaveLen(1))
	})

	It("cancels the current message when another is spoken", func() {
		Expect(speaker.Toggle(ctx, 1, "first")).To(Succeed())
		Eventually(synth.utterances).Should(HaveLen(1))

		Expect(speaker.Toggle(ctx, 2, "second")).To(Succeed())
		Expect(speakingIndex()).To(Equal(2))
		Eventually(synth.utterances).Should(HaveLen(2))

		// The cancelled playback finishing must not clear the new index.
		Consistently(speakingIndex).Should(Equal(2))
		Expect(synth.utterances()[1].Text).To(Equal("second"))
	})

	It("waits for a cancelled message to stop before speaking the next", func() {
		synth.linger = 50 * time.Millisecond
		Expect(speaker.Toggle(ctx, 0, "first")).To(Succeed())
		Eventually(synth.utterances).Should(HaveLen(1))

		Expect(speaker.Toggle(ctx, 2, "second")).To(Succeed())
		Eventually(synth.utterances).Should(HaveLen(2))
		Expect(synth.mostConcurrent()).To(Equal(1))
		Expect(speakingIndex()).To(Equal(2))
	})

	It("keeps playback serial across rapid toggles", func() {
		synth.linger = 20 * time.Millisecond
		texts := []string{"one", "two", "three", "four"}
		for i, text := range texts {
			Expect(speaker.Toggle(ctx, i, text)).To(Succeed())
			time.Sleep(5 * time.Millisecond)
		}
		lastSpoken := func() string {
			u := synth.utterances()
			if len(u) == 0 {
				return ""
			}
			return u[len(u)-1].Text
		}
		Eventually(lastSpoken, time.Second).Should(Equal("four"))
		Expect(speakingIndex()).To(Equal(3))
		Consistently(synth.mostConcurrent, 100*time.Millisecond).Should(Equal(1))
	})

	Context("when the voice language differs from the reply language", func() {
		BeforeEach(func() {
			config.Language = "en-US"
			config.Gender = voice.GenderFemale
		})

		It("translates before speaking", func() {
			Expect(speaker.Toggle(ctx, 0, "Привет")).To(Succeed())
			Eventually(synth.utterances).Should(HaveLen(1))

			u := synth.utterances()[0]
			Expect(u.Text).To(Equal("[en] Привет"))
			Expect(u.Pitch).To(Equal(1.1))
			Expect(u.Voice.Name).To(Equal("Samantha"))
			Expect(tr.recorded()).To(Equal([][3]string{{"Привет", "ru", "en"}}))
		})

		It("exposes the translating state", func() {
			tr.gate = make(chan struct{})
			Expect(speaker.Toggle(ctx, 0, "Привет")).To(Succeed())
			Eventually(speaker.Translating).Should(BeTrue())

			close(tr.gate)
			Eventually(speaker.Translating).Should(BeFalse())
			Eventually(synth.utterances).Should(HaveLen(1))
		})

		It("never starts playback for a translation that finishes after a cancel", func() {
			tr.gate = make(chan struct{})
			Expect(speaker.Toggle(ctx, 0, "Привет")).To(Succeed())
			Eventually(tr.callCount).Should(Equal(1))

			Expect(speaker.Toggle(ctx, 0, "Привет")).To(Succeed())
			Expect(speaker.Translating()).To(BeFalse())
			close(tr.gate)

			Consistently(synth.utterances).Should(BeEmpty())
			_, speaking := speaker.Speaking()
			Expect(speaking).To(BeFalse())
		})
	})

	Context("without a synthesizer", func() {
		JustBeforeEach(func() {
			speaker = voice.NewSpeaker(nil, nil, config, zap.NewNop())
		})

		It("reports unsupported", func() {
			Expect(speaker.Toggle(ctx, 0, "text")).To(MatchError(voice.ErrUnsupported))
		})
	})
})
