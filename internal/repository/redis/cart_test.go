package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartRepository(client, 24*time.Hour), mr
}

func mug() *domain.Product {
	return &domain.Product{ID: "prod-1", Name: "Mug", Price: decimal.RequireFromString("12.50")}
}

func TestCartRepository_SaveAndGet(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	cart := domain.NewCart("user-1")
	require.NoError(t, cart.AddItem(mug(), 2))
	require.NoError(t, repo.Save(ctx, cart))

	assert.True(t, mr.Exists("cart:user-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:user-1"))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(25)))
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_CorruptDocument(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:user-1", "{not json"))

	_, err := repo.Get(context.Background(), "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

func TestCartRepository_Get_ConnectionError(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "user-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, repo.Save(context.Background(), domain.NewCart("user-1")))

	require.NoError(t, repo.Delete(context.Background(), "user-1"))
	assert.False(t, mr.Exists("cart:user-1"))
}

func TestCartRepository_Update_CreatesMissingCart(t *testing.T) {
	repo, _ := setupTestRedis(t)

	cart, err := repo.Update(context.Background(), "user-1", func(c *domain.Cart) error {
		return c.AddItem(mug(), 1)
	})

	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	stored, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("12.50")))
}

func TestCartRepository_Update_FnErrorDoesNotWrite(t *testing.T) {
	repo, mr := setupTestRedis(t)
	boom := errors.New("boom")

	_, err := repo.Update(context.Background(), "user-1", func(*domain.Cart) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("cart:user-1"))
}

func TestCartRepository_Update_ConcurrentAddsAreNotLost(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Update(ctx, "user-1", func(c *domain.Cart) error {
				return c.AddItem(mug(), 1)
			})
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, err := range errs {
		if err == nil {
			applied++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	}

	cart, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, applied, cart.Items[0].Quantity)
}
