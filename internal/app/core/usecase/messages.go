package usecase

import (
	"fmt"
	"strings"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

// 回覆內容 (HTML parse mode)

const (
	unknownActionText = "Unknown action."
)

func welcomeText(a domain.Account) string {
	return fmt.Sprintf("Welcome to Earning Bot!\nEarn points, invite friends, and withdraw your earnings!\nYour referral code: <b>%s</b>", a.RefCode)
}

func referralNoticeText(p domain.Policy) string {
	return fmt.Sprintf("🎉 New referral! +%d points bonus!", p.ReferralBonus)
}

func earnText(r domain.EarnResult) string {
	if !r.Earned {
		return fmt.Sprintf("⏳ Please wait %d seconds before earning again!", r.Remaining)
	}
	return fmt.Sprintf("✅ You earned %d points!\nNew balance: %d", r.Amount, r.Balance)
}

func balanceText(a domain.Account) string {
	return fmt.Sprintf("💳 Your Balance\nPoints: %d\nReferrals: %d", a.Balance, a.Referrals)
}

func leaderboardText(standings []domain.Standing) string {
	var sb strings.Builder
	sb.WriteString("🏆 Top Earners\n")
	for _, s := range standings {
		fmt.Fprintf(&sb, "%d. User %s: %d points\n", s.Rank, s.ID, s.Balance)
	}
	return sb.String()
}

func referralsText(a domain.Account, botUsername string, p domain.Policy) string {
	return fmt.Sprintf("👥 Referral System\nYour code: <b>%s</b>\nReferrals: %d\nInvite link: t.me/%s?start=%s\n%d points per referral!",
		a.RefCode, a.Referrals, botUsername, a.RefCode, p.ReferralBonus)
}

func withdrawText(r domain.WithdrawResult, p domain.Policy) string {
	if !r.Requested {
		return fmt.Sprintf("🏧 Withdrawal\nMinimum: %d points\nYour balance: %d\nNeed %d more points!", p.MinWithdrawal, r.Balance, r.Shortfall)
	}
	return fmt.Sprintf("🏧 Withdrawal of %d points requested!\nOur team will process it soon.", r.Amount)
}

func helpText(p domain.Policy) string {
	return fmt.Sprintf("❓ Help\n💰 Earn: Get %d points/%s\n👥 Refer: %d points/ref\n🏧 Withdraw: Min %d points\nUse buttons below to navigate!",
		p.EarnAmount, cooldownUnit(p), p.ReferralBonus, p.MinWithdrawal)
}

func cooldownUnit(p domain.Policy) string {
	if p.CooldownSeconds() == 60 {
		return "min"
	}
	return p.Cooldown.String()
}
