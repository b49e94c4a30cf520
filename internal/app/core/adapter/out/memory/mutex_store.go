package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	"github.com/JoeShih716/go-earn-bot/pkg/wal"
)

// MutexStore 是一個使用 Mutex 實現的帳戶儲存
//
// 所有寫入 (建立、Update、匯入) 共用一把寫鎖，整個 load-mutate-persist 依序執行；
// 讀取使用讀鎖並回傳副本
//
// 結構:
//
//	mu: 保護 state
//	st: 帳戶資料、推薦碼索引與 WAL
type MutexStore struct {
	mu sync.RWMutex
	st *state
}

// NewMutexStore 建立一個新的 MutexStore 實例，並從 WAL 恢復資料
//
// 參數:
//
//	w: Write-Ahead Log 實例 (nil 代表只存在記憶體)
//	logger: zap logger
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
func NewMutexStore(w *wal.WAL, logger *zap.Logger, opts ...Option) *MutexStore {
	st := newState(w, logger, opts...)
	st.recoverFromWAL()
	return &MutexStore{st: st}
}

// Get 取得帳戶副本
func (m *MutexStore) Get(ctx context.Context, id string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.get(id)
}

// GetOrCreate 取得帳戶，不存在就建立
//
// 參數:
//
//	ctx: 上下文
//	id: 帳戶 ID
//
// 回傳:
//
//	domain.Account: 帳戶副本
//	bool: 是否新建
//	error: domain.ErrStorageWrite / domain.ErrDuplicateReferralCode
func (m *MutexStore) GetOrCreate(ctx context.Context, id string) (domain.Account, bool, error) {
	// 1. 讀鎖檢查 (Fast path)
	m.mu.RLock()
	a, err := m.st.get(id)
	m.mu.RUnlock()
	if err == nil {
		return a, false, nil
	}

	// 2. 加寫鎖後再檢查一次 (Double-check locking)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getOrCreate(id)
}

// FindByRefCode 用推薦碼索引找帳戶
func (m *MutexStore) FindByRefCode(ctx context.Context, code string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findByRefCode(code)
}

// Update 在寫鎖內執行 fn 並提交
func (m *MutexStore) Update(ctx context.Context, ids []string, fn usecase.UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.update(ids, fn)
}

// Snapshot 回傳所有帳戶的副本 (依建立順序)
func (m *MutexStore) Snapshot(ctx context.Context) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.snapshot(), nil
}

// Import 匯入外部帳戶 (例如舊版 users.json)，回傳實際匯入的數量
func (m *MutexStore) Import(ctx context.Context, accounts []domain.Account) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.importAccounts(accounts)
}

// Compact 壓縮 WAL
func (m *MutexStore) Compact(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.compact()
}

// Len 帳戶數量
func (m *MutexStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.accounts)
}

var _ usecase.AccountStore = (*MutexStore)(nil)
