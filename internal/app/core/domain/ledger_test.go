package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarnCooldown(t *testing.T) {
	p := DefaultPolicy()
	a := *NewAccount("42", "abcd1234", 1)

	// 第一次 Earn 在 t=0 也要成功
	a, res := Earn(a, 0, p)
	require.True(t, res.Earned)
	assert.Equal(t, int64(10), res.Amount)
	assert.Equal(t, int64(10), a.Balance)
	assert.Equal(t, int64(0), a.LastEarn)
	assert.True(t, a.HasEarned())

	a, res = Earn(a, 30, p)
	assert.False(t, res.Earned)
	assert.Equal(t, int64(30), res.Remaining)
	assert.Equal(t, int64(10), a.Balance)
	assert.Equal(t, int64(0), a.LastEarn)

	a, res = Earn(a, 61, p)
	assert.True(t, res.Earned)
	assert.Equal(t, int64(20), a.Balance)
	assert.Equal(t, int64(61), a.LastEarn)
	assert.Equal(t, int64(2), a.Earns)
}

func TestEarnCooldownBoundary(t *testing.T) {
	p := DefaultPolicy()
	a := Account{ID: "1", LastEarn: 1000, Earns: 1, Balance: 10}

	_, res := Earn(a, 1059, p)
	assert.False(t, res.Earned)
	assert.Equal(t, int64(1), res.Remaining)

	_, res = Earn(a, 1060, p)
	assert.True(t, res.Earned)
}

func TestEarnClockSkew(t *testing.T) {
	p := DefaultPolicy()
	a := Account{ID: "1", LastEarn: 1000, Earns: 1}

	_, res := Earn(a, 900, p)
	assert.False(t, res.Earned)
	assert.Equal(t, int64(60), res.Remaining)
}

func TestEarnLegacyAccountWithoutCounter(t *testing.T) {
	// users.json 沒有 earns 欄位，LastEarn != 0 就代表曾經 Earn 過
	p := DefaultPolicy()
	a := Account{ID: "1", LastEarn: 500}
	_, res := Earn(a, 530, p)
	assert.False(t, res.Earned)
}

func TestWithdraw(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		balance   int64
		requested bool
		amount    int64
		shortfall int64
		after     int64
	}{
		{name: "below minimum", balance: 99, shortfall: 1, after: 99},
		{name: "empty", balance: 0, shortfall: 100, after: 0},
		{name: "exact minimum", balance: 100, requested: true, amount: 100, after: 0},
		{name: "above minimum", balance: 150, requested: true, amount: 150, after: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, res := Withdraw(Account{ID: "1", Balance: tt.balance}, p)
			assert.Equal(t, tt.requested, res.Requested)
			assert.Equal(t, tt.amount, res.Amount)
			assert.Equal(t, tt.shortfall, res.Shortfall)
			assert.Equal(t, tt.after, a.Balance)
			assert.Equal(t, tt.after, res.Balance)
		})
	}
}

func TestLinkReferral(t *testing.T) {
	p := DefaultPolicy()
	referrer := Account{ID: "A", RefCode: "aaaa1111", Balance: 5}
	referee := Account{ID: "B", RefCode: "bbbb2222"}

	b, a, err := LinkReferral(referee, referrer, p)
	require.NoError(t, err)
	assert.Equal(t, "A", b.ReferredBy)
	assert.Equal(t, int64(55), a.Balance)
	assert.Equal(t, int64(1), a.Referrals)

	_, a2, err := LinkReferral(b, a, p)
	assert.ErrorIs(t, err, ErrAlreadyReferred)
	assert.Equal(t, a, a2)

	_, _, err = LinkReferral(referrer, referrer, p)
	assert.ErrorIs(t, err, ErrSelfReferral)
}

func TestPolicyWithDefaults(t *testing.T) {
	p := Policy{EarnAmount: 25}.WithDefaults()
	assert.Equal(t, int64(25), p.EarnAmount)
	assert.Equal(t, 60*time.Second, p.Cooldown)
	assert.Equal(t, int64(50), p.ReferralBonus)
	assert.Equal(t, int64(100), p.MinWithdrawal)
	assert.Equal(t, 5, p.LeaderboardSize)
	assert.Equal(t, int64(60), p.CooldownSeconds())
}
