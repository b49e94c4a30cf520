package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	"github.com/JoeShih716/go-earn-bot/pkg/database"
)

// maxCodeAttempts 推薦碼碰撞時最多重新產生幾次
const maxCodeAttempts = 16

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	// Seq 自動遞增，也就是建立順序
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	Identity   string `gorm:"size:64;uniqueIndex;not null"`
	Balance    int64  `gorm:"not null;default:0"`
	LastEarn   int64  `gorm:"not null;default:0"`
	Earns      int64  `gorm:"not null;default:0"`
	Referrals  int64  `gorm:"not null;default:0"`
	RefCode    string `gorm:"size:16;uniqueIndex;not null"`
	ReferredBy string `gorm:"size:64;not null;default:''"`
	UpdatedAt  int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (r *sqlAccount) toDomain() domain.Account {
	return domain.Account{
		ID:         r.Identity,
		Balance:    r.Balance,
		LastEarn:   r.LastEarn,
		Earns:      r.Earns,
		Referrals:  r.Referrals,
		RefCode:    r.RefCode,
		ReferredBy: r.ReferredBy,
		Seq:        r.Seq,
	}
}

// assign 把 Update 後的可變欄位寫回資料列
func (r *sqlAccount) assign(a domain.Account) {
	r.Balance = a.Balance
	r.LastEarn = a.LastEarn
	r.Earns = a.Earns
	r.Referrals = a.Referrals
	r.ReferredBy = a.ReferredBy
}

// Option 設定 Store
type Option func(*Store)

// WithCodeGenerator 替換推薦碼產生器 (測試用)
func WithCodeGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newCode = gen
	}
}

// Store 以關聯式資料庫實作的帳戶儲存
//
// Update 在一個資料庫交易內依排序後的 ID 逐筆 SELECT ... FOR UPDATE (悲觀鎖)，
// 多個實例共用同一個資料庫也能保證異動不互相覆蓋
type Store struct {
	client  *database.Client
	newCode func() string
	logger  *zap.Logger
}

// NewStore 建立 Store
func NewStore(client *database.Client, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		client:  client,
		newCode: domain.RandomRefCode,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate 建立或更新資料表
func (s *Store) Migrate(ctx context.Context) error {
	return s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{})
}

// Get 取得帳戶
func (s *Store) Get(ctx context.Context, id string) (domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("identity = ?", id).First(&row).Error
	if err != nil {
		return domain.Account{}, readError(err)
	}
	return row.toDomain(), nil
}

// GetOrCreate 取得帳戶，不存在就建立
//
// 推薦碼與 identity 都有 unique index：
// 衝突時若 identity 已存在代表被並發建立，直接回傳；否則是推薦碼碰撞，重新產生
func (s *Store) GetOrCreate(ctx context.Context, id string) (domain.Account, bool, error) {
	a, err := s.Get(ctx, id)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, false, err
	}

	for range maxCodeAttempts {
		row := sqlAccount{
			Identity: id,
			RefCode:  s.newCode(),
		}
		err := s.client.DB().WithContext(ctx).Create(&row).Error
		if err == nil {
			return row.toDomain(), true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Account{}, false, fmt.Errorf("%w: create account: %v", domain.ErrStorageWrite, err)
		}
		if existing, getErr := s.Get(ctx, id); getErr == nil {
			return existing, false, nil
		}
		s.logger.Debug("referral code collision, regenerating", zap.String("code", row.RefCode))
	}
	return domain.Account{}, false, fmt.Errorf("%w: gave up after %d attempts", domain.ErrDuplicateReferralCode, maxCodeAttempts)
}

// FindByRefCode 用推薦碼找帳戶 (ref_code 有 unique index)
func (s *Store) FindByRefCode(ctx context.Context, code string) (domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("ref_code = ?", code).First(&row).Error
	if err != nil {
		return domain.Account{}, readError(err)
	}
	return row.toDomain(), nil
}

// Update 在資料庫交易內鎖定帳戶、執行 fn 並提交
//
// 參數:
//
//	ctx: 上下文
//	ids: 需要異動的帳戶
//	fn: 異動邏輯
//
// 回傳:
//
//	error: fn 的錯誤 (原樣回傳) / domain.ErrAccountNotFound / domain.ErrStorageWrite
func (s *Store) Update(ctx context.Context, ids []string, fn usecase.UpdateFunc) error {
	var fnErr error
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 取得鎖定帳號，依固定順序逐筆上鎖以避免死鎖
		lockIDs := domain.LockIDs(ids...)
		rows := make(map[string]*sqlAccount, len(lockIDs))
		working := make(map[string]*domain.Account, len(lockIDs))
		for _, id := range lockIDs {
			var row sqlAccount
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("identity = ?", id).
				First(&row).Error
			if err != nil {
				fnErr = readError(err)
				return fnErr
			}
			a := row.toDomain()
			rows[id] = &row
			working[id] = &a
		}

		if fnErr = fn(working); fnErr != nil {
			return fnErr
		}

		for _, id := range lockIDs {
			row := rows[id]
			before := row.toDomain()
			after, ok := working[id]
			if !ok || after == nil {
				fnErr = fmt.Errorf("%w: %s removed", domain.ErrImmutableField, id)
				return fnErr
			}
			if fnErr = domain.ValidateMutation(before, *after); fnErr != nil {
				return fnErr
			}
			if *after == before {
				continue
			}
			row.assign(*after)
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}
	return nil
}

// Snapshot 依建立順序回傳所有帳戶
func (s *Store) Snapshot(ctx context.Context) ([]domain.Account, error) {
	var rows []sqlAccount
	if err := s.client.DB().WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// Import 匯入外部帳戶 (已存在的 identity 略過)，回傳實際匯入的數量
//
// 推薦碼為空或已被使用時重新產生，全部在同一個交易內完成
func (s *Store) Import(ctx context.Context, accounts []domain.Account) (int, error) {
	imported := 0
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range accounts {
			if a.ID == "" {
				continue
			}
			var count int64
			if err := tx.Model(&sqlAccount{}).Where("identity = ?", a.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			code, err := s.importCode(tx, a)
			if err != nil {
				return err
			}
			row := sqlAccount{
				Identity:   a.ID,
				Balance:    max(a.Balance, 0),
				LastEarn:   a.LastEarn,
				Earns:      a.Earns,
				Referrals:  a.Referrals,
				RefCode:    code,
				ReferredBy: a.ReferredBy,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			imported++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateReferralCode) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: import: %v", domain.ErrStorageWrite, err)
	}
	return imported, nil
}

// importCode 沿用匯入的推薦碼，已被使用就重新產生
func (s *Store) importCode(tx *gorm.DB, a domain.Account) (string, error) {
	code := a.RefCode
	for attempt := 0; attempt <= maxCodeAttempts; attempt++ {
		if code != "" {
			var count int64
			if err := tx.Model(&sqlAccount{}).Where("ref_code = ?", code).Count(&count).Error; err != nil {
				return "", err
			}
			if count == 0 {
				return code, nil
			}
			s.logger.Warn("imported referral code already taken, regenerating",
				zap.String("identity", a.ID),
				zap.String("code", code),
				zap.Error(domain.ErrDuplicateReferralCode),
			)
		}
		code = s.newCode()
	}
	return "", fmt.Errorf("%w: gave up after %d attempts", domain.ErrDuplicateReferralCode, maxCodeAttempts)
}

// readError 把 gorm 的查詢錯誤轉成 domain 錯誤
func readError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
}

var _ usecase.AccountStore = (*Store)(nil)
