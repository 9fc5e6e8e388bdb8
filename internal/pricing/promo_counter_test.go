package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoCounter_Uses(t *testing.T) {
	client, mock := redismock.NewClientMock()
	counter := NewPromoCounter(client)
	configID := uuid.New()
	key := promoKey(configID, "summer")

	mock.ExpectGet(key).SetVal("4")
	uses, err := counter.Uses(context.Background(), configID, "summer")
	require.NoError(t, err)
	assert.Equal(t, int64(4), uses)

	mock.ExpectGet(key).RedisNil()
	uses, err = counter.Uses(context.Background(), configID, "SUMMER")
	require.NoError(t, err)
	assert.Zero(t, uses)

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	_, err = counter.Uses(context.Background(), configID, "summer")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoCounter_Redeem(t *testing.T) {
	client, mock := redismock.NewClientMock()
	counter := NewPromoCounter(client)
	configID := uuid.New()
	key := promoKey(configID, "SUMMER")
	hash := redis.NewScript(redeemPromoScript).Hash()
	ttl := 48 * time.Hour

	mock.ExpectEvalSha(hash, []string{key}, int64(2), int64(5), ttl.Milliseconds()).SetVal(int64(3))
	uses, err := counter.Redeem(context.Background(), configID, " summer ", 2, 5, ttl)
	require.NoError(t, err)
	assert.Equal(t, int64(3), uses)

	mock.ExpectEvalSha(hash, []string{key}, int64(2), int64(5), ttl.Milliseconds()).SetVal(int64(-1))
	_, err = counter.Redeem(context.Background(), configID, "SUMMER", 2, 5, ttl)
	assert.ErrorIs(t, err, ErrPromoExhausted)

	mock.ExpectEvalSha(hash, []string{key}, int64(0), int64(-1), int64(0)).SetErr(errors.New("timeout"))
	_, err = counter.Redeem(context.Background(), configID, "SUMMER", 0, -1, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPromoExhausted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoKey(t *testing.T) {
	id := uuid.MustParse("7b0f8f8e-6a3c-4c55-9d7e-1f2a3b4c5d6e")
	assert.Equal(t, "pricing:promo:7b0f8f8e-6a3c-4c55-9d7e-1f2a3b4c5d6e:SUMMER", promoKey(id, " Summer "))
}
