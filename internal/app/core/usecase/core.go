package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

// Result 一次事件處理的結果
type Result struct {
	Command Command
	// Duplicate: 重送的事件，沒有處理
	Duplicate bool
	// Reply: 給觸發者的回覆，CommandIgnore 時為 nil
	Reply *domain.Response
	// Notices: 給其他使用者的通知 (例如推薦人)
	Notices []domain.Response
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithPolicy 設定經濟參數
func WithPolicy(p domain.Policy) Option {
	return func(c *CoreUseCase) {
		c.policy = p.WithDefaults()
	}
}

// WithClock 設定時間來源 (測試用)
func WithClock(clock func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.clock = clock
	}
}

// WithBotUsername 設定邀請連結用的 bot 名稱
func WithBotUsername(name string) Option {
	return func(c *CoreUseCase) {
		c.botUsername = name
	}
}

// WithDeduper 設定重送過濾
func WithDeduper(d Deduper) Option {
	return func(c *CoreUseCase) {
		c.deduper = d
	}
}

// CoreUseCase 是核心業務邏輯層，負責分派事件
type CoreUseCase struct {
	store       AccountStore
	notifier    Notifier
	deduper     Deduper
	resolver    *ReferralResolver
	policy      domain.Policy
	botUsername string
	clock       func() time.Time
	logger      *zap.Logger
}

// NewCoreUseCase 建立 CoreUseCase
func NewCoreUseCase(store AccountStore, notifier Notifier, logger *zap.Logger, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		store:       store,
		notifier:    notifier,
		policy:      domain.DefaultPolicy(),
		botUsername: "YourBotUsername",
		clock:       time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = NewReferralResolver(store, c.policy, logger)
	return c
}

// Policy 目前的經濟參數
func (c *CoreUseCase) Policy() domain.Policy {
	return c.policy
}

// Dispatch 處理一個事件：分類 -> 讀取/建立帳戶 -> 執行操作 -> 提交 -> 送出回覆
//
// 回覆在提交之後才送出，送出失敗只記錄不回滾
// 提交失敗時回傳 domain.ErrStorageWrite，但已經算好的回覆仍會嘗試送出
// 任何錯誤都會釋放重送過濾的 key
//
// 參數:
//
//	ctx: 上下文
//	ev: 正規化後的事件
//
// 回傳:
//
//	Result: 處理結果
//	error: domain.ErrInvalidEvent / domain.ErrStorageWrite / 其他儲存層錯誤
func (c *CoreUseCase) Dispatch(ctx context.Context, ev domain.NormalizedEvent) (Result, error) {
	cmd := Classify(ev)
	res := Result{Command: cmd}
	if cmd.Identity == "" {
		return res, fmt.Errorf("%w: missing identity", domain.ErrInvalidEvent)
	}

	log := c.logger.With(
		zap.String("identity", cmd.Identity),
		zap.Int64("update_id", ev.UpdateID),
		zap.Stringer("command", cmd.Kind),
	)

	dedupKey := ""
	if ev.UpdateID != 0 && c.deduper != nil {
		dedupKey = "update:" + strconv.FormatInt(ev.UpdateID, 10)
		first, err := c.deduper.Claim(ctx, dedupKey)
		if err != nil {
			// 過濾失敗時照常處理
			log.Warn("dedup claim failed", zap.Error(err))
			dedupKey = ""
		} else if !first {
			log.Info("duplicate update skipped")
			res.Duplicate = true
			return res, nil
		}
	}

	now := ev.Timestamp
	if now == 0 {
		now = c.clock().Unix()
	}

	eventsTotal.WithLabelValues(cmd.Kind.String(), string(cmd.Action)).Inc()

	var err error
	switch cmd.Kind {
	case CommandStart:
		err = c.handleStart(ctx, cmd, &res)
	case CommandAction:
		err = c.handleAction(ctx, cmd, now, &res)
	default:
		_, _, err = c.store.GetOrCreate(ctx, cmd.Identity)
	}

	if err != nil {
		if errors.Is(err, domain.ErrStorageWrite) {
			storageWriteFailures.Inc()
			log.Error("persistence failed, mutation lost", zap.Error(err))
		} else {
			log.Error("dispatch failed", zap.Error(err))
		}
		// 失敗的事件會被平台重送，釋放 key 讓重送能再處理一次
		if dedupKey != "" {
			if rerr := c.deduper.Release(context.WithoutCancel(ctx), dedupKey); rerr != nil {
				log.Warn("dedup release failed", zap.Error(rerr))
			}
		}
	}

	c.deliver(ctx, log, res)
	return res, err
}

// deliver 盡力送出回覆與通知，失敗只記錄
func (c *CoreUseCase) deliver(ctx context.Context, log *zap.Logger, res Result) {
	if c.notifier == nil {
		return
	}
	out := make([]domain.Response, 0, 1+len(res.Notices))
	if res.Reply != nil {
		out = append(out, *res.Reply)
	}
	out = append(out, res.Notices...)
	for _, resp := range out {
		if err := c.notifier.Send(ctx, resp); err != nil {
			deliveryFailures.Inc()
			log.Error("send response failed",
				zap.String("recipient", resp.Identity),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrDelivery, err)),
			)
		}
	}
}

// handleStart 建立帳戶、處理推薦碼、回覆歡迎訊息
func (c *CoreUseCase) handleStart(ctx context.Context, cmd Command, res *Result) error {
	account, created, err := c.store.GetOrCreate(ctx, cmd.Identity)
	if err != nil {
		return err
	}
	if created {
		c.logger.Info("account created", zap.String("identity", account.ID), zap.String("ref_code", account.RefCode))
	}

	if cmd.RefCode != "" && !account.IsReferred() {
		referrer, linked, err := c.resolver.Resolve(ctx, account.ID, cmd.RefCode)
		if err != nil {
			// 推薦失敗不影響歡迎訊息
			c.reply(res, cmd.Identity, welcomeText(account))
			return err
		}
		if linked {
			ledgerOpsTotal.WithLabelValues("referral", "linked").Inc()
			res.Notices = append(res.Notices, domain.Response{
				Identity: referrer.ID,
				Text:     referralNoticeText(c.policy),
			})
		}
	}

	c.reply(res, cmd.Identity, welcomeText(account))
	return nil
}

// handleAction 執行選單動作
func (c *CoreUseCase) handleAction(ctx context.Context, cmd Command, now int64, res *Result) error {
	account, _, err := c.store.GetOrCreate(ctx, cmd.Identity)
	if err != nil {
		return err
	}

	switch cmd.Action {
	case domain.ActionEarn:
		var result domain.EarnResult
		err = c.store.Update(ctx, []string{account.ID}, func(accounts map[string]*domain.Account) error {
			var next domain.Account
			next, result = domain.Earn(*accounts[account.ID], now, c.policy)
			*accounts[account.ID] = next
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrStorageWrite) {
			return err
		}
		ledgerOpsTotal.WithLabelValues("earn", outcome(result.Earned)).Inc()
		c.reply(res, cmd.Identity, earnText(result))
		return err

	case domain.ActionBalance:
		c.reply(res, cmd.Identity, balanceText(account))

	case domain.ActionLeaderboard:
		accounts, err := c.store.Snapshot(ctx)
		if err != nil {
			return err
		}
		c.reply(res, cmd.Identity, leaderboardText(domain.Rank(accounts, c.policy.LeaderboardSize)))

	case domain.ActionReferrals:
		c.reply(res, cmd.Identity, referralsText(account, c.botUsername, c.policy))

	case domain.ActionWithdraw:
		var result domain.WithdrawResult
		err = c.store.Update(ctx, []string{account.ID}, func(accounts map[string]*domain.Account) error {
			var next domain.Account
			next, result = domain.Withdraw(*accounts[account.ID], c.policy)
			*accounts[account.ID] = next
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrStorageWrite) {
			return err
		}
		ledgerOpsTotal.WithLabelValues("withdraw", outcome(result.Requested)).Inc()
		if result.Requested && err == nil {
			c.logger.Info("withdrawal requested", zap.String("identity", account.ID), zap.Int64("amount", result.Amount))
		}
		c.reply(res, cmd.Identity, withdrawText(result, c.policy))
		return err

	case domain.ActionHelp:
		c.reply(res, cmd.Identity, helpText(c.policy))

	default:
		c.reply(res, cmd.Identity, unknownActionText)
	}
	return nil
}

func (c *CoreUseCase) reply(res *Result, identity string, text string) {
	res.Reply = &domain.Response{
		Identity: identity,
		Text:     text,
		Menu:     domain.MainMenu,
	}
}

// GetAccount 取得帳戶 (管理用)
func (c *CoreUseCase) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.store.Get(ctx, id)
}

// Leaderboard 取得排行榜 (管理用)，n <= 0 使用預設人數
func (c *CoreUseCase) Leaderboard(ctx context.Context, n int) ([]domain.Standing, error) {
	if n <= 0 {
		n = c.policy.LeaderboardSize
	}
	accounts, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Rank(accounts, n), nil
}

func outcome(ok bool) string {
	if ok {
		return "applied"
	}
	return "rejected"
}
