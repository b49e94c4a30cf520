package memory

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	"github.com/JoeShih716/go-earn-bot/pkg/wal"
)

// maxCodeAttempts 推薦碼碰撞時最多重新產生幾次
const maxCodeAttempts = 16

// Option 設定記憶體 Store
type Option func(*state)

// WithCodeGenerator 替換推薦碼產生器 (測試用)
func WithCodeGenerator(gen func() string) Option {
	return func(s *state) {
		s.newCode = gen
	}
}

// state 帳戶資料本體，本身不做同步，由 MutexStore / LMAXStore 保護
type state struct {
	accounts map[string]*domain.Account
	// codes: 推薦碼 -> 帳戶 ID 的索引，與帳戶一起更新
	codes map[string]string
	// accountSeq: 最後分配的帳戶建立序號
	accountSeq uint64
	// commitSeq: 最後一次提交的序號
	commitSeq uint64
	// Write-Ahead Logging，nil 代表不持久化
	wal     *wal.WAL
	newCode func() string
	logger  *zap.Logger
}

func newState(w *wal.WAL, logger *zap.Logger, opts ...Option) *state {
	s := &state{
		accounts: make(map[string]*domain.Account),
		codes:    make(map[string]string),
		wal:      w,
		newCode:  domain.RandomRefCode,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recoverFromWAL 從 WAL 檔案恢復帳戶狀態
//
// 讀到損毀的紀錄時保留之前恢復的資料並記錄 ErrStorageRead，
// 接著壓縮 WAL，讓之後追加的紀錄不會接在損毀資料後面
func (s *state) recoverFromWAL() {
	if s.wal == nil {
		return
	}
	replayed := 0
	err := s.wal.ReadAll(func(jsonRaw []byte) error {
		var c domain.Commit
		if err := json.Unmarshal(jsonRaw, &c); err != nil {
			return err
		}
		s.apply(c)
		replayed++
		return nil
	})
	if err == nil {
		s.logger.Info("wal recovered",
			zap.String("path", s.wal.Path()),
			zap.Int("commits", replayed),
			zap.Int("accounts", len(s.accounts)),
		)
		return
	}

	s.logger.Error("wal unreadable, continuing with recovered state",
		zap.String("path", s.wal.Path()),
		zap.Int("commits", replayed),
		zap.Int("accounts", len(s.accounts)),
		zap.Error(fmt.Errorf("%w: %v", domain.ErrStorageRead, err)),
	)
	if err := s.compact(); err != nil {
		s.logger.Error("wal compaction after recovery failed", zap.Error(err))
	}
}

// apply 套用一筆提交到記憶體 (不寫 WAL)
func (s *state) apply(c domain.Commit) {
	for i := range c.Accounts {
		a := c.Accounts[i]
		if old, ok := s.accounts[a.ID]; ok && old.RefCode != a.RefCode {
			delete(s.codes, old.RefCode)
		}
		s.accounts[a.ID] = &a
		if a.RefCode != "" {
			s.codes[a.RefCode] = a.ID
		}
		s.accountSeq = max(s.accountSeq, a.Seq)
	}
	s.commitSeq = max(s.commitSeq, c.Sequence)
}

// commit 先寫 WAL 再套用到記憶體，WAL 寫入失敗時記憶體不變
func (s *state) commit(accounts []domain.Account) error {
	c := domain.Commit{
		Sequence:  s.commitSeq + 1,
		CreatedAt: time.Now().UnixMilli(),
		Accounts:  accounts,
	}
	if s.wal != nil {
		if err := s.wal.Write(c); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
		}
	}
	s.apply(c)
	return nil
}

func (s *state) get(id string) (domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *a, nil
}

func (s *state) findByRefCode(code string) (domain.Account, error) {
	id, ok := s.codes[code]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return s.get(id)
}

// uniqueCode 產生一組目前沒人使用的推薦碼，taken 是這次提交中已經預定的碼
func (s *state) uniqueCode(taken map[string]bool) (string, error) {
	for range maxCodeAttempts {
		code := s.newCode()
		if code == "" {
			continue
		}
		if _, used := s.codes[code]; used || taken[code] {
			s.logger.Debug("referral code collision, regenerating", zap.String("code", code))
			continue
		}
		return code, nil
	}
	return "", fmt.Errorf("%w: gave up after %d attempts", domain.ErrDuplicateReferralCode, maxCodeAttempts)
}

// getOrCreate 呼叫者必須持有寫入權
func (s *state) getOrCreate(id string) (domain.Account, bool, error) {
	if a, ok := s.accounts[id]; ok {
		return *a, false, nil
	}
	code, err := s.uniqueCode(nil)
	if err != nil {
		return domain.Account{}, false, err
	}
	a := domain.NewAccount(id, code, s.accountSeq+1)
	if err := s.commit([]domain.Account{*a}); err != nil {
		return domain.Account{}, false, err
	}
	return *a, true, nil
}

// update 呼叫者必須持有寫入權
func (s *state) update(ids []string, fn usecase.UpdateFunc) error {
	lockIDs := domain.LockIDs(ids...)
	originals := make(map[string]domain.Account, len(lockIDs))
	working := make(map[string]*domain.Account, len(lockIDs))
	for _, id := range lockIDs {
		a, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		cp := *a
		originals[id] = *a
		working[id] = &cp
	}

	if err := fn(working); err != nil {
		return err
	}

	changed := make([]domain.Account, 0, len(lockIDs))
	for _, id := range lockIDs {
		next, ok := working[id]
		if !ok || next == nil {
			return fmt.Errorf("%w: %s removed", domain.ErrImmutableField, id)
		}
		orig := originals[id]
		if err := domain.ValidateMutation(orig, *next); err != nil {
			return err
		}
		if *next != orig {
			changed = append(changed, *next)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return s.commit(changed)
}

// importAccounts 匯入外部帳戶 (已存在的 ID 略過)，呼叫者必須持有寫入權
//
// 推薦碼為空或與既有帳戶重複時重新產生，建立序號依匯入順序重新分配
func (s *state) importAccounts(accounts []domain.Account) (int, error) {
	taken := make(map[string]bool)
	seen := make(map[string]bool)
	batch := make([]domain.Account, 0, len(accounts))
	seq := s.accountSeq
	for _, a := range accounts {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		if _, ok := s.accounts[a.ID]; ok {
			continue
		}
		seen[a.ID] = true
		_, used := s.codes[a.RefCode]
		if a.RefCode == "" || used || taken[a.RefCode] {
			if a.RefCode != "" {
				s.logger.Warn("imported referral code already taken, regenerating",
					zap.String("identity", a.ID),
					zap.String("code", a.RefCode),
					zap.Error(domain.ErrDuplicateReferralCode),
				)
			}
			code, err := s.uniqueCode(taken)
			if err != nil {
				return 0, err
			}
			a.RefCode = code
		}
		taken[a.RefCode] = true
		a.Balance = max(a.Balance, 0)
		seq++
		a.Seq = seq
		batch = append(batch, a)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := s.commit(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// snapshot 依建立順序回傳所有帳戶的副本
func (s *state) snapshot() []domain.Account {
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b domain.Account) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// compact 把 WAL 改寫成一筆包含所有帳戶的提交
func (s *state) compact() error {
	if s.wal == nil {
		return nil
	}
	c := domain.Commit{
		Sequence:  s.commitSeq,
		CreatedAt: time.Now().UnixMilli(),
		Accounts:  s.snapshot(),
	}
	if err := s.wal.Rewrite(c); err != nil {
		return fmt.Errorf("%w: compact: %v", domain.ErrStorageWrite, err)
	}
	return nil
}
