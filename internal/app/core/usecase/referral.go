package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

// ReferralResolver 用推薦碼找推薦人並綁定推薦關係 (最多一次)
type ReferralResolver struct {
	store  AccountStore
	policy domain.Policy
	logger *zap.Logger
}

// NewReferralResolver 建立 ReferralResolver
func NewReferralResolver(store AccountStore, policy domain.Policy, logger *zap.Logger) *ReferralResolver {
	return &ReferralResolver{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Resolve 嘗試把 refereeID 綁定到 code 的擁有者
//
// 找不到推薦碼、自己推薦自己、已經有推薦人都不是錯誤，linked 回傳 false
// 推薦人的獎勵與被推薦人的 ReferredBy 在同一次 Update 內提交
//
// 參數:
//
//	ctx: 上下文
//	refereeID: 被推薦人 ID (帳戶必須已存在)
//	code: 推薦碼
//
// 回傳:
//
//	domain.Account: 提交後的推薦人
//	bool: 是否綁定成功
//	error: 儲存層錯誤
func (r *ReferralResolver) Resolve(ctx context.Context, refereeID string, code string) (domain.Account, bool, error) {
	if code == "" {
		return domain.Account{}, false, nil
	}
	owner, err := r.store.FindByRefCode(ctx, code)
	if errors.Is(err, domain.ErrAccountNotFound) {
		r.logger.Debug("referral code not found", zap.String("identity", refereeID), zap.String("code", code))
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	if owner.ID == refereeID {
		return domain.Account{}, false, nil
	}

	var referrer domain.Account
	err = r.store.Update(ctx, []string{refereeID, owner.ID}, func(accounts map[string]*domain.Account) error {
		referee, ref, err := domain.LinkReferral(*accounts[refereeID], *accounts[owner.ID], r.policy)
		if err != nil {
			return err
		}
		*accounts[refereeID] = referee
		*accounts[owner.ID] = ref
		referrer = ref
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyReferred), errors.Is(err, domain.ErrSelfReferral):
		return domain.Account{}, false, nil
	case err != nil:
		return domain.Account{}, false, err
	}
	r.logger.Info("referral linked",
		zap.String("identity", refereeID),
		zap.String("referrer", referrer.ID),
		zap.Int64("referrer_balance", referrer.Balance),
	)
	return referrer, true, nil
}
