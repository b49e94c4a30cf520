package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

func TestResolveConcurrentReferralsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMutexStore(nil, zap.NewNop())
	resolver := usecase.NewReferralResolver(store, domain.DefaultPolicy(), zap.NewNop())

	var codes []string
	for _, id := range []string{"A", "B", "C", "D"} {
		a, _, err := store.GetOrCreate(ctx, id)
		require.NoError(t, err)
		codes = append(codes, a.RefCode)
	}
	_, _, err := store.GetOrCreate(ctx, "new")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	linked := 0
	for _, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := resolver.Resolve(ctx, "new", code)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				linked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, linked)

	accounts, err := store.Snapshot(ctx)
	require.NoError(t, err)
	var total, referrals int64
	for _, a := range accounts {
		total += a.Balance
		referrals += a.Referrals
	}
	assert.Equal(t, int64(50), total)
	assert.Equal(t, int64(1), referrals)
}

func TestResolveEmptyCode(t *testing.T) {
	store := memory.NewMutexStore(nil, zap.NewNop())
	resolver := usecase.NewReferralResolver(store, domain.DefaultPolicy(), zap.NewNop())
	_, ok, err := resolver.Resolve(context.Background(), "x", "")
	assert.NoError(t, err)
	assert.False(t, ok)
}
