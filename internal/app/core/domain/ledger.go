package domain

import "time"

// Policy 點數經濟的參數
type Policy struct {
	// Cooldown: 兩次 Earn 之間的最短間隔
	Cooldown time.Duration `yaml:"cooldown"`
	// EarnAmount: 每次 Earn 獲得的點數
	EarnAmount int64 `yaml:"earn_amount"`
	// ReferralBonus: 推薦人每次推薦成功獲得的點數
	ReferralBonus int64 `yaml:"referral_bonus"`
	// MinWithdrawal: 最低提領點數
	MinWithdrawal int64 `yaml:"min_withdrawal"`
	// LeaderboardSize: 排行榜顯示人數
	LeaderboardSize int `yaml:"leaderboard_size"`
}

// DefaultPolicy 預設參數
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:        60 * time.Second,
		EarnAmount:      10,
		ReferralBonus:   50,
		MinWithdrawal:   100,
		LeaderboardSize: 5,
	}
}

// WithDefaults 把沒有設定的欄位補上預設值
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Cooldown <= 0 {
		p.Cooldown = d.Cooldown
	}
	if p.EarnAmount <= 0 {
		p.EarnAmount = d.EarnAmount
	}
	if p.ReferralBonus <= 0 {
		p.ReferralBonus = d.ReferralBonus
	}
	if p.MinWithdrawal <= 0 {
		p.MinWithdrawal = d.MinWithdrawal
	}
	if p.LeaderboardSize <= 0 {
		p.LeaderboardSize = d.LeaderboardSize
	}
	return p
}

// CooldownSeconds 冷卻時間 (秒)
func (p Policy) CooldownSeconds() int64 {
	return int64(p.Cooldown / time.Second)
}

// EarnResult Earn 的結果
type EarnResult struct {
	// Earned: false 代表還在冷卻中，帳戶沒有變動
	Earned bool
	// Amount: 這次獲得的點數
	Amount int64
	// Remaining: 冷卻剩餘秒數
	Remaining int64
	// Balance: 操作後的餘額
	Balance int64
}

// Earn 計算一次 Earn 的結果
//
// 冷卻判斷與 LastEarn 的更新都使用同一個 now
//
// 參數:
//
//	a: 帳戶 (值傳遞，不會改到呼叫者的資料)
//	now: 目前時間 (Unix 秒)
//	p: 經濟參數
//
// 回傳:
//
//	Account: 操作後的帳戶
//	EarnResult: 結果
func Earn(a Account, now int64, p Policy) (Account, EarnResult) {
	cooldown := p.CooldownSeconds()
	if a.HasEarned() {
		// 時鐘倒退時視為剛 Earn 完
		elapsed := max(now-a.LastEarn, 0)
		if elapsed < cooldown {
			return a, EarnResult{
				Remaining: cooldown - elapsed,
				Balance:   a.Balance,
			}
		}
	}
	if err := a.Deposit(p.EarnAmount); err != nil {
		return a, EarnResult{Balance: a.Balance}
	}
	a.LastEarn = now
	a.Earns++
	return a, EarnResult{
		Earned:  true,
		Amount:  p.EarnAmount,
		Balance: a.Balance,
	}
}

// WithdrawResult 提領申請的結果
type WithdrawResult struct {
	// Requested: false 代表餘額不足，帳戶沒有變動
	Requested bool
	// Amount: 申請提領的點數 (等於申請前的全部餘額)
	Amount int64
	// Shortfall: 距離最低提領還差多少
	Shortfall int64
	// Balance: 操作後的餘額
	Balance int64
}

// Withdraw 計算提領申請，成功時餘額歸零
//
// 只是標記申請，不會真的付款
func Withdraw(a Account, p Policy) (Account, WithdrawResult) {
	if a.Balance < p.MinWithdrawal {
		return a, WithdrawResult{
			Shortfall: p.MinWithdrawal - a.Balance,
			Balance:   a.Balance,
		}
	}
	amount := a.Balance
	a.Balance = 0
	return a, WithdrawResult{
		Requested: true,
		Amount:    amount,
		Balance:   0,
	}
}

// ApplyReferralBonus 推薦人獲得推薦獎勵
func ApplyReferralBonus(referrer Account, p Policy) Account {
	referrer.Referrals++
	referrer.Balance += p.ReferralBonus
	return referrer
}

// LinkReferral 綁定推薦關係並發放獎勵，兩者一起成功或一起失敗
//
// 回傳:
//
//	Account: 被推薦人
//	Account: 推薦人
//	error: ErrAlreadyReferred / ErrSelfReferral
func LinkReferral(referee Account, referrer Account, p Policy) (Account, Account, error) {
	if err := referee.LinkReferrer(referrer.ID); err != nil {
		return referee, referrer, err
	}
	return referee, ApplyReferralBonus(referrer, p), nil
}
