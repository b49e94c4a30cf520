package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlreadyReferred 帳戶已經有推薦人
	ErrAlreadyReferred = errors.New("account already referred")

	// ErrSelfReferral 不能推薦自己
	ErrSelfReferral = errors.New("self referral")

	// ErrDuplicateReferralCode 推薦碼重複 (產生時碰撞，應重新產生)
	ErrDuplicateReferralCode = errors.New("duplicate referral code")

	// ErrStorageRead 儲存層無法讀取或資料損毀
	ErrStorageRead = errors.New("storage read failed")

	// ErrStorageWrite 提交失敗，這次的異動已遺失
	ErrStorageWrite = errors.New("storage write failed")

	// ErrDelivery 訊息送出失敗
	ErrDelivery = errors.New("delivery failed")

	// ErrStoreClosed Store 已關閉
	ErrStoreClosed = errors.New("store closed")
)

var (
	// ErrImmutableField Update 時修改了 ID / RefCode / Seq
	ErrImmutableField = errors.New("immutable account field changed")

	// ErrInvalidEvent 事件缺少必要欄位
	ErrInvalidEvent = errors.New("invalid event")
)

// ErrNegativeBalance 餘額不能為負
var ErrNegativeBalance = errors.New("negative balance")
