package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/school-management/internal/auth"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
)

var _ = Describe("LockoutPolicy", func() {
	var (
		policy auth.LockoutPolicy
		now    time.Time
	)

	BeforeEach(func() {
		policy = auth.NewLockoutPolicy(5, 15*time.Minute)
		now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	})

	Describe("Evaluate", func() {
		It("treats an account without a lock as active", func() {
			acc := &account.Account{ID: "S001"}
			Expect(policy.Evaluate(acc, now)).To(Equal(auth.StateActive))
		})

		It("reports locked while the expiry is in the future", func() {
			until := now.Add(5 * time.Minute)
			acc := &account.Account{ID: "S001", LockedUntil: &until}
			Expect(policy.Evaluate(acc, now)).To(Equal(auth.StateLocked))
		})

		It("reports expired once the expiry has passed", func() {
			until := now.Add(-time.Second)
			acc := &account.Account{ID: "S001", LockedUntil: &until}
			Expect(policy.Evaluate(acc, now)).To(Equal(auth.StateExpired))
		})

		It("treats the exact expiry instant as expired", func() {
			until := now
			acc := &account.Account{ID: "S001", LockedUntil: &until}
			Expect(policy.Evaluate(acc, now)).To(Equal(auth.StateExpired))
		})
	})

	Describe("ShouldLock", func() {
		It("does not lock below the threshold", func() {
			Expect(policy.ShouldLock(4)).To(BeFalse())
		})

		It("locks at the threshold", func() {
			Expect(policy.ShouldLock(5)).To(BeTrue())
		})

		It("locks above the threshold", func() {
			Expect(policy.ShouldLock(6)).To(BeTrue())
		})
	})

	Describe("RemainingAttempts", func() {
		It("counts down from the threshold", func() {
			Expect(policy.RemainingAttempts(1)).To(Equal(4))
			Expect(policy.RemainingAttempts(4)).To(Equal(1))
		})

		It("never goes negative", func() {
			Expect(policy.RemainingAttempts(9)).To(Equal(0))
		})
	})

	Describe("LockExpiry", func() {
		It("adds the configured duration", func() {
			Expect(policy.LockExpiry(now)).To(Equal(now.Add(15 * time.Minute)))
		})
	})

	Describe("defaults", func() {
		It("falls back to five attempts and fifteen minutes", func() {
			p := auth.NewLockoutPolicy(0, 0)
			Expect(p.Threshold).To(Equal(5))
			Expect(p.Duration).To(Equal(15 * time.Minute))
		})
	})
})

var _ = Describe("RemainingMinutes", func() {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	It("rounds up so a locked caller never sees zero", func() {
		Expect(auth.RemainingMinutes(now.Add(30*time.Second), now)).To(Equal(1))
	})

	It("reports a full window as its minute count plus one", func() {
		Expect(auth.RemainingMinutes(now.Add(15*time.Minute), now)).To(Equal(16))
	})

	It("reports zero once the lock has expired", func() {
		Expect(auth.RemainingMinutes(now.Add(-time.Second), now)).To(Equal(0))
	})
})
