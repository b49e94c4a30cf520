package domain

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RefCodeLength 推薦碼長度
const RefCodeLength = 8

// Commit 一次提交的內容，也是 WAL 的一筆紀錄
//
// Accounts 放的是提交後的完整帳戶狀態，重放時直接覆蓋
type Commit struct {
	// Sequence: 全局遞增的提交序號，WAL 重放時用來確認順序
	Sequence uint64 `json:"sequence"`
	// CreatedAt: 提交時間 (Unix 毫秒)
	CreatedAt int64 `json:"created_at"`
	// Accounts: 這次異動到的帳戶
	Accounts []Account `json:"accounts"`
}

// LockIDs 回傳需要鎖定的帳戶 ID，排序並去除重複以避免死鎖
func LockIDs(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// RandomRefCode 產生一組隨機推薦碼 (UUID v4 的前 8 個 hex 字元)
//
// 不保證唯一，唯一性由 Store 檢查，碰撞時重新產生
func RandomRefCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:RefCodeLength]
}
