package legacy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

func TestDecodeUsersKeepsFileOrder(t *testing.T) {
	data := `{
		"900": {"balance": 120, "last_earn": 1700000000, "referrals": 2, "ref_code": "a1b2c3d4", "referred_by": null},
		"17":  {"balance": 10, "last_earn": 0, "referrals": 0, "ref_code": "e5f6a7b8", "referred_by": 900},
		"42":  {"balance": -3, "ref_code": "c0ffee00", "referred_by": "17", "extra": true}
	}`
	accounts, err := DecodeUsers(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, domain.Account{ID: "900", Balance: 120, LastEarn: 1700000000, Referrals: 2, RefCode: "a1b2c3d4"}, accounts[0])
	assert.Equal(t, "17", accounts[1].ID)
	assert.Equal(t, "900", accounts[1].ReferredBy)
	assert.Equal(t, "42", accounts[2].ID)
	assert.Equal(t, "17", accounts[2].ReferredBy)
	assert.Zero(t, accounts[2].Balance)
}

func TestDecodeUsersEmpty(t *testing.T) {
	for _, data := range []string{"", "[]", "{}", "  \n"} {
		accounts, err := DecodeUsers(strings.NewReader(data))
		assert.NoError(t, err, data)
		assert.Empty(t, accounts, data)
	}
}

func TestDecodeUsersCorrupt(t *testing.T) {
	for _, data := range []string{`{"1": {"balance": "lots"}}`, `{"1": {`, `[1, 2]`, `"users"`} {
		_, err := DecodeUsers(strings.NewReader(data))
		assert.ErrorIs(t, err, domain.ErrStorageRead, data)
	}
}

func TestLoadUsersFile(t *testing.T) {
	dir := t.TempDir()

	accounts, err := LoadUsersFile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, accounts)

	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"5": {"balance": 5, "ref_code": "55555555"}}`), 0644))
	accounts, err = LoadUsersFile(path)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(5), accounts[0].Balance)
}
