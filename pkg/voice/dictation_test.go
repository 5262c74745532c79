package voice_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/voice"
)

const silence = 200 * time.Millisecond

func final(text string) voice.Event {
	return voice.Event{Type: voice.EventResult, Transcript: text, Final: true}
}

var _ = Describe("Machine", func() {
	var (
		ctx     context.Context
		feed    *voice.Feed
		input   *sink
		tr      *translator
		config  voice.MachineConfig
		machine *voice.Machine
	)

	BeforeEach(func() {
		ctx = context.Background()
		feed = voice.NewFeed()
		input = &sink{}
		tr = &translator{}
		config = voice.MachineConfig{Language: "ru-RU", SilenceTimeout: silence}
	})

	JustBeforeEach(func() {
		machine = voice.NewMachine(feed, tr, input.write, config, zap.NewNop())
	})

	AfterEach(func() {
		machine.Stop()
	})

	Describe("dictation", func() {
		It("starts a continuous session with interim results", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(machine.State()).To(Equal(voice.StateDictating))

			cfg, ok := feed.Active()
			Expect(ok).To(BeTrue())
			Expect(cfg).To(Equal(voice.RecognitionConfig{Lang: "ru-RU", Continuous: true, InterimResults: true}))
		})

		Context("without pauses", func() {
			BeforeEach(func() {
				config.SilenceTimeout = time.Minute
			})

			It("joins final fragments with single spaces and flushes them on toggle", func() {
				Expect(machine.ToggleDictation(ctx)).To(Succeed())
				Expect(feed.Push(final("Hello"))).To(Succeed())
				Expect(feed.Push(final(" big "))).To(Succeed())
				Expect(feed.Push(final("world"))).To(Succeed())
				Eventually(machine.Dictation).Should(Equal("Hello big world"))

				Expect(machine.ToggleDictation(ctx)).To(Succeed())
				Expect(machine.State()).To(Equal(voice.StateIdle))
				Expect(machine.Dictation()).To(BeEmpty())
				Expect(input.all()).To(Equal([]string{"Hello big world"}))
			})
		})

		It("ends a sentence after a pause", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(final("Hello"))).To(Succeed())
			Eventually(machine.Dictation).Should(Equal("Hello."))

			Expect(feed.Push(final("world"))).To(Succeed())
			Eventually(machine.Dictation).WithPolling(time.Millisecond).Should(Equal("Hello. world"))

			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(input.all()).To(Equal([]string{"Hello. world"}))
		})

		It("re-arms the pause timer on every fragment", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(final("one"))).To(Succeed())
			Expect(feed.Push(final("two"))).To(Succeed())
			Eventually(machine.Dictation).Should(Equal("one two."))
			Consistently(machine.Dictation, 3*silence).Should(Equal("one two."))
		})

		It("tracks interim fragments without committing them", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(voice.Event{Type: voice.EventResult, Transcript: "hel"})).To(Succeed())
			Eventually(machine.Interim).Should(Equal("hel"))
			Expect(machine.Dictation()).To(BeEmpty())
		})

		It("writes nothing when toggled off with only whitespace", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(final("   "))).To(Succeed())
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(input.all()).To(BeEmpty())
		})

		It("restarts the engine when it ends while still dictating", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(final("before"))).To(Succeed())
			Eventually(machine.Dictation).Should(HavePrefix("before"))

			Expect(feed.Push(voice.Event{Type: voice.EventEnd})).To(Succeed())
			Eventually(func() bool {
				_, ok := feed.Active()
				return ok
			}).Should(BeTrue())
			Expect(machine.State()).To(Equal(voice.StateDictating))

			Eventually(func() error { return feed.Push(final("after")) }).Should(Succeed())
			Eventually(machine.Dictation).Should(ContainSubstring("after"))

			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			texts := input.all()
			Expect(texts).To(HaveLen(1))
			Expect(texts[0]).To(HavePrefix("before"))
			Expect(texts[0]).To(HaveSuffix("after"))
		})

		It("returns to idle on an engine error without writing to the sink", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(feed.Push(final("partial"))).To(Succeed())
			Expect(feed.Push(voice.Event{Type: voice.EventError, Err: errMicrophone})).To(Succeed())

			Eventually(machine.State).Should(Equal(voice.StateIdle))
			Expect(machine.LastError()).To(MatchError(errMicrophone))
			Expect(input.all()).To(BeEmpty())
		})

		It("rejects dictation while listening", func() {
			Expect(machine.Listen(ctx)).To(Succeed())
			Expect(machine.ToggleDictation(ctx)).To(MatchError(voice.ErrBusy))
			Expect(machine.State()).To(Equal(voice.StateListening))
		})
	})

	Describe("one-shot listening", func() {
		It("writes the first result and returns to idle", func() {
			Expect(machine.Listen(ctx)).To(Succeed())
			Expect(machine.State()).To(Equal(voice.StateListening))

			cfg, ok := feed.Active()
			Expect(ok).To(BeTrue())
			Expect(cfg).To(Equal(voice.RecognitionConfig{Lang: "ru-RU"}))

			Expect(feed.Push(final("привет"))).To(Succeed())
			Eventually(input.all).Should(Equal([]string{"привет"}))
			Eventually(machine.State).Should(Equal(voice.StateIdle))
			Expect(tr.callCount()).To(BeZero())
		})

		It("waits past interim fragments for the final result", func() {
			Expect(machine.Listen(ctx)).To(Succeed())
			Expect(feed.Push(voice.Event{Type: voice.EventResult, Transcript: "при"})).To(Succeed())
			Consistently(input.all, 50*time.Millisecond).Should(BeEmpty())
			Expect(machine.State()).To(Equal(voice.StateListening))

			Expect(feed.Push(final("привет мир"))).To(Succeed())
			Eventually(input.all).Should(Equal([]string{"привет мир"}))
			Eventually(machine.State).Should(Equal(voice.StateIdle))
		})

		It("returns to idle when the engine ends without a result", func() {
			Expect(machine.Listen(ctx)).To(Succeed())
			Expect(feed.Push(voice.Event{Type: voice.EventEnd})).To(Succeed())
			Eventually(machine.State).Should(Equal(voice.StateIdle))
			Expect(input.all()).To(BeEmpty())
		})

		It("rejects listening while dictating", func() {
			Expect(machine.ToggleDictation(ctx)).To(Succeed())
			Expect(machine.Listen(ctx)).To(MatchError(voice.ErrBusy))
		})

		Context("with auto-detect translation", func() {
			BeforeEach(func() {
				config.AutoDetect = true
				config.TranslateTo = "en"
				tr.out = func(text, _, _ string) string { return "Hello, how are you?" }
			})

			It("lets the engine detect the language", func() {
				Expect(machine.Listen(ctx)).To(Succeed())
				cfg, _ := feed.Active()
				Expect(cfg.Lang).To(BeEmpty())
			})

			It("translates and annotates speech in another language", func() {
				Expect(machine.Listen(ctx)).To(Succeed())
				Expect(feed.Push(voice.Event{Type: voice.EventResult, Transcript: "Привет, как дела?", Final: true, Lang: "ru-RU"})).To(Succeed())

				Eventually(input.all).Should(Equal([]string{"🌐 Hello, how are you?\n\n📍 Русский → English"}))
				Expect(tr.recorded()).To(Equal([][3]string{{"Привет, как дела?", "ru", "en"}}))
			})

			It("uses auto as the source when the engine reports no language", func() {
				Expect(machine.Listen(ctx)).To(Succeed())
				Expect(feed.Push(final("hola"))).To(Succeed())

				Eventually(input.all).Should(Equal([]string{"🌐 Hello, how are you?\n\n📍 AUTO → English"}))
			})

			It("passes speech already in the target language through", func() {
				Expect(machine.Listen(ctx)).To(Succeed())
				Expect(feed.Push(voice.Event{Type: voice.EventResult, Transcript: "hi there", Final: true, Lang: "en-US"})).To(Succeed())

				Eventually(input.all).Should(Equal([]string{"hi there"}))
				Expect(tr.callCount()).To(BeZero())
			})
		})
	})

	Context("without a recognition engine", func() {
		JustBeforeEach(func() {
			machine = voice.NewMachine(nil, nil, input.write, config, zap.NewNop())
		})

		It("reports unsupported and stays idle", func() {
			Expect(machine.ToggleDictation(ctx)).To(MatchError(voice.ErrUnsupported))
			Expect(machine.Listen(ctx)).To(MatchError(voice.ErrUnsupported))
			Expect(machine.State()).To(Equal(voice.StateIdle))
			Expect(machine.LastError()).To(MatchError(voice.ErrUnsupported))
		})
	})

	Context("when the engine refuses to start", func() {
		JustBeforeEach(func() {
			machine = voice.NewMachine(failingRecognizer{}, nil, input.write, config, zap.NewNop())
		})

		It("stays idle and records the error", func() {
			Expect(machine.ToggleDictation(ctx)).To(MatchError(errMicrophone))
			Expect(machine.State()).To(Equal(voice.StateIdle))
			Expect(machine.LastError()).To(MatchError(errMicrophone))
		})
	})
})

var _ = Describe("LanguageName", func() {
	DescribeTable("renders languages in their own script",
		func(code, want string) {
			Expect(voice.LanguageName(code)).To(Equal(want))
		},
		Entry("Russian", "ru", "Русский"),
		Entry("English", "en", "English"),
		Entry("German", "de", "Deutsch"),
		Entry("auto", "auto", "AUTO"),
	)
})
