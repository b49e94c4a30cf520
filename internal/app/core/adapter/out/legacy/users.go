// Package legacy 讀取舊版 bot 的 users.json
//
// 格式為 { "<chat id>": { "balance": 0, "last_earn": 0, "referrals": 0, "ref_code": "...", "referred_by": null } }，
// referred_by 可能是數字、字串或 null
package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

type user struct {
	Balance    int64           `json:"balance"`
	LastEarn   int64           `json:"last_earn"`
	Referrals  int64           `json:"referrals"`
	RefCode    string          `json:"ref_code"`
	ReferredBy json.RawMessage `json:"referred_by"`
}

// LoadUsersFile 讀取檔案，檔案不存在回傳空的結果
//
// 無法解析時回傳 domain.ErrStorageRead
func LoadUsersFile(path string) ([]domain.Account, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	return DecodeUsers(bytes.NewReader(data))
}

// DecodeUsers 依檔案中的順序解碼帳戶 (順序就是建立順序)
func DecodeUsers(r io.Reader) ([]domain.Account, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	switch tok {
	case json.Delim('{'):
	case json.Delim('['):
		// 空的 PHP 陣列會被編碼成 []
		if dec.More() {
			return nil, fmt.Errorf("%w: users file is a non-empty array", domain.ErrStorageRead)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %v", domain.ErrStorageRead, tok)
	}

	var accounts []domain.Account
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", domain.ErrStorageRead, keyTok)
		}
		var u user
		if err := dec.Decode(&u); err != nil {
			return nil, fmt.Errorf("%w: user %s: %v", domain.ErrStorageRead, id, err)
		}
		accounts = append(accounts, domain.Account{
			ID:         id,
			Balance:    max(u.Balance, 0),
			LastEarn:   u.LastEarn,
			Referrals:  max(u.Referrals, 0),
			RefCode:    u.RefCode,
			ReferredBy: referrerID(u.ReferredBy),
		})
	}
	return accounts, nil
}

// referrerID null / 數字 / 字串 都轉成字串 ID
func referrerID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return strings.TrimSuffix(n.String(), ".0")
	}
	return ""
}
