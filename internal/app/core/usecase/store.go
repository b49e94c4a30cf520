package usecase

import (
	"context"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

//go:generate mockgen -destination=mock_ports_test.go -package=usecase_test . Notifier,Deduper

// UpdateFunc 在取得帳戶異動權後執行
//
// accounts 是私有副本，回傳 nil 才會提交；回傳錯誤時什麼都不寫入
type UpdateFunc func(accounts map[string]*domain.Account) error

// AccountStore 是帳戶儲存層的介面
type AccountStore interface {
	// Get 取得帳戶，不存在回傳 domain.ErrAccountNotFound
	Get(ctx context.Context, id string) (domain.Account, error)
	// GetOrCreate 取得帳戶，不存在就建立 (產生唯一推薦碼)，第二個回傳值代表是否新建
	GetOrCreate(ctx context.Context, id string) (domain.Account, bool, error)
	// FindByRefCode 用推薦碼找帳戶，找不到回傳 domain.ErrAccountNotFound
	FindByRefCode(ctx context.Context, code string) (domain.Account, error)
	// Update 依排序後的順序取得 ids 的異動權，執行 fn 並原子提交有變動的帳戶
	// 提交失敗回傳 domain.ErrStorageWrite
	Update(ctx context.Context, ids []string, fn UpdateFunc) error
	// Snapshot 回傳所有帳戶的副本
	Snapshot(ctx context.Context) ([]domain.Account, error)
}

// Notifier 把回覆送到聊天平台
type Notifier interface {
	Send(ctx context.Context, resp domain.Response) error
}

// Deduper 過濾平台重送的事件
type Deduper interface {
	// Claim 第一次看到 key 回傳 true
	Claim(ctx context.Context, key string) (bool, error)
	// Release 放棄 key，讓重送的事件可以再處理一次
	Release(ctx context.Context, key string) error
}
