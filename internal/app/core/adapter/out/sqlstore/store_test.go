package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/pkg/database"
)

// newTestStore 每個測試使用獨立的 in-memory SQLite
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := database.NewClient(database.Config{
		Driver:   database.DriverSQLite,
		DBName:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s := NewStore(client, zap.NewNop(), opts...)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	a, created, err := s.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(1), a.Seq)
	assert.Len(t, a.RefCode, domain.RefCodeLength)

	again, created, err := s.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a, again)

	found, err := s.FindByRefCode(ctx, a.RefCode)
	require.NoError(t, err)
	assert.Equal(t, "1", found.ID)

	_, err = s.FindByRefCode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestReferralCodeCollisionRegenerates(t *testing.T) {
	ctx := context.Background()
	codes := []string{"samecode", "samecode", "uniqcode"}
	s := newTestStore(t, WithCodeGenerator(func() string {
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c
	}))

	a, _, err := s.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	b, created, err := s.GetOrCreate(ctx, "2")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "samecode", a.RefCode)
	assert.Equal(t, "uniqcode", b.RefCode)
}

func TestReferralCodeGenerationGivesUp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithCodeGenerator(func() string { return "constant" }))

	_, _, err := s.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	_, _, err = s.GetOrCreate(ctx, "2")
	assert.ErrorIs(t, err, domain.ErrDuplicateReferralCode)
}

func TestUpdateReferral(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []string{"A", "B"} {
		_, _, err := s.GetOrCreate(ctx, id)
		require.NoError(t, err)
	}

	link := func(accounts map[string]*domain.Account) error {
		referee, referrer, err := domain.LinkReferral(*accounts["B"], *accounts["A"], domain.DefaultPolicy())
		if err != nil {
			return err
		}
		*accounts["B"], *accounts["A"] = referee, referrer
		return nil
	}
	require.NoError(t, s.Update(ctx, []string{"B", "A"}, link))
	assert.ErrorIs(t, s.Update(ctx, []string{"B", "A"}, link), domain.ErrAlreadyReferred)

	a, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Balance)
	assert.Equal(t, int64(1), a.Referrals)
	b, err := s.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "A", b.ReferredBy)
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, _, err := s.GetOrCreate(ctx, "1")
	require.NoError(t, err)

	err = s.Update(ctx, []string{"1", "ghost"}, func(map[string]*domain.Account) error { return nil })
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	err = s.Update(ctx, []string{"1"}, func(accounts map[string]*domain.Account) error {
		accounts["1"].Balance = -1
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	a, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Zero(t, a.Balance)
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	const users = 5
	const rounds = 10
	for i := range users {
		_, _, err := s.GetOrCreate(ctx, strconv.Itoa(i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := range users {
		for range rounds {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids := []string{strconv.Itoa(i), strconv.Itoa((i + 1) % users)}
				assert.NoError(t, s.Update(ctx, ids, func(accounts map[string]*domain.Account) error {
					for _, a := range accounts {
						a.Balance++
					}
					return nil
				}))
			}()
		}
	}
	wg.Wait()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, users)
	for _, a := range snap {
		assert.Equal(t, int64(2*rounds), a.Balance, a.ID)
	}
}

func TestSnapshotOrderAndImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	existing, _, err := s.GetOrCreate(ctx, "0")
	require.NoError(t, err)

	n, err := s.Import(ctx, []domain.Account{
		{ID: "9", Balance: 70, RefCode: "legacy09", LastEarn: 123},
		{ID: "3", Balance: 20, RefCode: existing.RefCode, ReferredBy: "9"},
		{ID: "0", Balance: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"0", "9", "3"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.Equal(t, "legacy09", snap[1].RefCode)
	assert.Equal(t, int64(123), snap[1].LastEarn)
	assert.NotEqual(t, existing.RefCode, snap[2].RefCode)
	assert.Equal(t, "9", snap[2].ReferredBy)
	assert.Zero(t, snap[0].Balance)

	standings := domain.Rank(snap, 5)
	assert.Equal(t, "9", standings[0].ID)
}
