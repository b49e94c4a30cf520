package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	"github.com/JoeShih716/go-earn-bot/pkg/wal"
)

// request 把操作包裝後放上輸送帶，讓呼叫者可以等待結果
type request struct {
	op     func(st *state) error
	result chan error
}

// LMAXStore 單一寫入者的帳戶儲存
//
// 所有讀寫都由 run loop 依序執行，state 不需要鎖
// PostRequest(等待) -> Channel -> Run Loop -> WAL -> Map Update -> Result Channel -> 呼叫者收到結果
type LMAXStore struct {
	st *state
	// 輸送帶 負責接收操作
	requests chan *request
	// done: run loop 結束後關閉
	done chan struct{}
	// Pool 減少 GC 壓力
	requestPool sync.Pool
}

// NewLMAXStore 建立一個新的 LMAXStore 實例，並從 WAL 恢復資料
//
// 建立後必須呼叫 Start 才會開始處理
//
// 參數:
//
//	w: Write-Ahead Log 實例 (nil 代表只存在記憶體)
//	logger: zap logger
//
// 回傳:
//
//	*LMAXStore: LMAXStore 實例
func NewLMAXStore(w *wal.WAL, logger *zap.Logger, opts ...Option) *LMAXStore {
	st := newState(w, logger, opts...)
	// 在啟動前先恢復資料，此時只有這個 goroutine
	st.recoverFromWAL()
	return &LMAXStore{
		st:       st,
		requests: make(chan *request, 1000), // Buffer 1000
		done:     make(chan struct{}),
		requestPool: sync.Pool{
			New: func() any {
				return &request{
					result: make(chan error, 1),
				}
			},
		},
	}
}

// Start 啟動核心迴圈 (非同步)，ctx 結束後處理完佇列中的請求再停止
func (l *LMAXStore) Start(ctx context.Context) {
	go l.run(ctx)
}

// Done run loop 結束後關閉
func (l *LMAXStore) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXStore) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.requests:
			req.result <- req.op(l.st)
		}
	}
}

func (l *LMAXStore) drain() {
	for {
		select {
		case req := <-l.requests:
			req.result <- req.op(l.st)
		default:
			return
		}
	}
}

// submit 放上輸送帶並等待 run loop 執行完
func (l *LMAXStore) submit(ctx context.Context, op func(st *state) error) error {
	req := l.requestPool.Get().(*request)
	req.op = op
	// 清空 Channel (理論上應該是空的)
	select {
	case <-req.result:
	default:
	}

	select {
	case l.requests <- req:
	case <-l.done:
		return domain.ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		req.op = nil
		l.requestPool.Put(req)
		return err
	case <-l.done:
		// loop 結束前可能剛好處理完
		select {
		case err := <-req.result:
			return err
		default:
			return domain.ErrStoreClosed
		}
	}
}

// Get 取得帳戶副本
func (l *LMAXStore) Get(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := l.submit(ctx, func(st *state) error {
		var err error
		a, err = st.get(id)
		return err
	})
	return a, err
}

// GetOrCreate 取得帳戶，不存在就建立
func (l *LMAXStore) GetOrCreate(ctx context.Context, id string) (domain.Account, bool, error) {
	var (
		a       domain.Account
		created bool
	)
	err := l.submit(ctx, func(st *state) error {
		var err error
		a, created, err = st.getOrCreate(id)
		return err
	})
	return a, created, err
}

// FindByRefCode 用推薦碼索引找帳戶
func (l *LMAXStore) FindByRefCode(ctx context.Context, code string) (domain.Account, error) {
	var a domain.Account
	err := l.submit(ctx, func(st *state) error {
		var err error
		a, err = st.findByRefCode(code)
		return err
	})
	return a, err
}

// Update 在 run loop 內執行 fn 並提交
func (l *LMAXStore) Update(ctx context.Context, ids []string, fn usecase.UpdateFunc) error {
	return l.submit(ctx, func(st *state) error {
		return st.update(ids, fn)
	})
}

// Snapshot 回傳所有帳戶的副本 (依建立順序)
func (l *LMAXStore) Snapshot(ctx context.Context) ([]domain.Account, error) {
	var out []domain.Account
	err := l.submit(ctx, func(st *state) error {
		out = st.snapshot()
		return nil
	})
	return out, err
}

// Import 匯入外部帳戶，回傳實際匯入的數量
func (l *LMAXStore) Import(ctx context.Context, accounts []domain.Account) (int, error) {
	var n int
	err := l.submit(ctx, func(st *state) error {
		var err error
		n, err = st.importAccounts(accounts)
		return err
	})
	return n, err
}

// Compact 壓縮 WAL
func (l *LMAXStore) Compact(ctx context.Context) error {
	return l.submit(ctx, func(st *state) error {
		return st.compact()
	})
}

var _ usecase.AccountStore = (*LMAXStore)(nil)
