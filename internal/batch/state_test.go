package batch

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("tracker", func() {
	var t *tracker

	BeforeEach(func() {
		t = newTracker()
	})

	It("starts pending", func() {
		Expect(t.current()).To(Equal(StatePending))
	})

	It("follows the happy path", func() {
		Expect(t.to(StateDownloading)).To(Succeed())
		Expect(t.to(StateProcessing)).To(Succeed())
		Expect(t.to(StateDone)).To(Succeed())
		Expect(t.current().Terminal()).To(BeTrue())
	})

	It("allows failing straight from downloading", func() {
		Expect(t.to(StateDownloading)).To(Succeed())
		Expect(t.to(StateFailed)).To(Succeed())
	})

	It("rejects skipping states", func() {
		Expect(t.to(StateProcessing)).To(MatchError("invalid batch transition pending -> processing"))
		Expect(t.current()).To(Equal(StatePending))
	})

	DescribeTable("terminal states accept no transitions",
		func(terminal State) {
			Expect(t.to(StateDownloading)).To(Succeed())
			Expect(t.to(StateProcessing)).To(Succeed())
			Expect(t.to(terminal)).To(Succeed())
			for _, next := range []State{StatePending, StateDownloading, StateProcessing, StateDone, StatePartiallyFailed, StateFailed} {
				Expect(t.to(next)).To(HaveOccurred())
			}
			Expect(t.current()).To(Equal(terminal))
		},
		Entry("done", StateDone),
		Entry("partially failed", StatePartiallyFailed),
		Entry("failed", StateFailed),
	)
})
