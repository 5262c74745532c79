package voice_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/voice"
)

var _ = Describe("Feed", func() {
	var feed *voice.Feed

	BeforeEach(func() {
		feed = voice.NewFeed()
	})

	It("rejects events with no session", func() {
		Expect(feed.Push(final("hello"))).To(MatchError(voice.ErrNoSession))
		_, ok := feed.Active()
		Expect(ok).To(BeFalse())
	})

	It("delivers events and closes the session on end", func() {
		session, err := feed.Start(context.Background(), voice.RecognitionConfig{Lang: "en-US"})
		Expect(err).NotTo(HaveOccurred())

		Expect(feed.Push(final("hello"))).To(Succeed())
		Expect(feed.Push(voice.Event{Type: voice.EventEnd})).To(Succeed())

		Expect(session.Events()).To(Receive(Equal(final("hello"))))
		Expect(session.Events()).To(Receive(HaveField("Type", voice.EventEnd)))
		Expect(session.Events()).To(BeClosed())

		_, ok := feed.Active()
		Expect(ok).To(BeFalse())
	})

	It("ends the previous session when a new one starts", func() {
		first, err := feed.Start(context.Background(), voice.RecognitionConfig{})
		Expect(err).NotTo(HaveOccurred())
		_, err = feed.Start(context.Background(), voice.RecognitionConfig{Continuous: true})
		Expect(err).NotTo(HaveOccurred())

		Eventually(first.Events()).Should(BeClosed())
		cfg, ok := feed.Active()
		Expect(ok).To(BeTrue())
		Expect(cfg.Continuous).To(BeTrue())
	})

	It("stops idempotently", func() {
		session, err := feed.Start(context.Background(), voice.RecognitionConfig{})
		Expect(err).NotTo(HaveOccurred())
		session.Stop()
		session.Stop()
		Expect(feed.Push(final("late"))).To(MatchError(voice.ErrNoSession))
	})
})
