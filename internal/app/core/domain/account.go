package domain

import "fmt"

// Account 使用者的點數帳戶，以平台提供的 identity 為 key
//
// JSON 欄位名稱沿用舊版 users.json，缺少的欄位解碼後為零值，未知欄位忽略
type Account struct {
	// ID: 平台使用者 ID (chat id)
	ID string `json:"id"`
	// Balance: 點數餘額，永遠 >= 0
	Balance int64 `json:"balance"`
	// LastEarn: 最後一次成功 Earn 的 Unix 秒數
	LastEarn int64 `json:"last_earn"`
	// Earns: 成功 Earn 的次數，用來區分「從未 Earn」與「在 epoch 0 Earn」
	Earns int64 `json:"earns"`
	// Referrals: 成功推薦人數
	Referrals int64 `json:"referrals"`
	// RefCode: 建立時產生，之後不可變
	RefCode string `json:"ref_code"`
	// ReferredBy: 推薦人 ID，只能設定一次
	ReferredBy string `json:"referred_by,omitempty"`
	// Seq: 建立順序，由 Store 分配，排行榜同分時使用
	Seq uint64 `json:"seq"`
}

// NewAccount 建立一個全新的帳戶
func NewAccount(id string, refCode string, seq uint64) *Account {
	return &Account{
		ID:      id,
		RefCode: refCode,
		Seq:     seq,
	}
}

// HasEarned 是否曾經成功 Earn 過 (冷卻時間只對這種帳戶生效)
func (a *Account) HasEarned() bool {
	return a.Earns > 0 || a.LastEarn != 0
}

// IsReferred 是否已經綁定推薦人
func (a *Account) IsReferred() bool {
	return a.ReferredBy != ""
}

// Deposit 存入點數
func (a *Account) Deposit(amount int64) error {
	if amount < 0 {
		return ErrAmountMustBePositive
	}
	a.Balance = a.Balance + amount
	return nil
}

// LinkReferrer 綁定推薦人，已綁定或自己推薦自己都會失敗
func (a *Account) LinkReferrer(referrerID string) error {
	if referrerID == a.ID {
		return ErrSelfReferral
	}
	if a.IsReferred() {
		return ErrAlreadyReferred
	}
	a.ReferredBy = referrerID
	return nil
}

// ValidateMutation 檢查一次 Update 前後的帳戶，ID / RefCode / Seq 不可變，餘額不可為負
func ValidateMutation(before Account, after Account) error {
	if after.ID != before.ID || after.RefCode != before.RefCode || after.Seq != before.Seq {
		return fmt.Errorf("%w: %s", ErrImmutableField, before.ID)
	}
	if after.Balance < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, before.ID)
	}
	if before.IsReferred() && after.ReferredBy != before.ReferredBy {
		return fmt.Errorf("%w: %s", ErrAlreadyReferred, before.ID)
	}
	return nil
}
