package usage_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/usage"
)

var _ = Describe("Accumulator", func() {
	var acc *usage.Accumulator

	BeforeEach(func() {
		acc = usage.NewAccumulator()
	})

	It("starts at zero", func() {
		Expect(acc.Total()).To(BeZero())
	})

	It("sums total tokens", func() {
		acc.Add(llm.Usage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12})
		acc.Add(llm.Usage{TotalTokens: 30})
		Expect(acc.Total()).To(Equal(42))
	})

	It("never decreases on negative or zero usage", func() {
		acc.Add(llm.Usage{TotalTokens: 10})
		acc.Add(llm.Usage{TotalTokens: -5})
		acc.Add(llm.Usage{})
		Expect(acc.Total()).To(Equal(10))
	})

	It("resets to zero", func() {
		acc.Add(llm.Usage{TotalTokens: 10})
		acc.Reset()
		Expect(acc.Total()).To(BeZero())
	})

	It("is safe for concurrent use", func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				acc.Add(llm.Usage{TotalTokens: 2})
			}()
		}
		wg.Wait()
		Expect(acc.Total()).To(Equal(100))
	})
})
