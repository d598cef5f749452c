package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

const testHash = "0f0e0d0c0b0a09080706050403020100f0e0d0c0b0a090807060504030201000"

func TestSettlementCache_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisSettlementCache(db, time.Hour, logger.InitializeTestZapLogger())

	mock.ExpectGet("lightning:invoice:" + testHash).RedisNil()

	got, err := cache.Get(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementCache_GetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisSettlementCache(db, time.Hour, logger.InitializeTestZapLogger())

	stored := models.InvoiceLookup{
		PaymentHash:    testHash,
		State:          models.InvoiceStateSettled,
		Settled:        true,
		AmountPaidSats: 2500,
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet("lightning:invoice:" + testHash).SetVal(string(data))

	got, err := cache.Get(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementCache_GetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisSettlementCache(db, time.Hour, logger.InitializeTestZapLogger())

	mock.ExpectGet("lightning:invoice:" + testHash).SetErr(errors.New("connection reset"))

	_, err := cache.Get(context.Background(), testHash)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisSettlementCache(db, 24*time.Hour, logger.InitializeTestZapLogger())

	lookup := &models.InvoiceLookup{
		PaymentHash: testHash,
		State:       models.InvoiceStateCanceled,
	}
	data, err := json.Marshal(lookup)
	require.NoError(t, err)

	mock.ExpectSet("lightning:invoice:"+testHash, string(data), 24*time.Hour).SetVal("OK")

	require.NoError(t, cache.Set(context.Background(), lookup))
	assert.NoError(t, mock.ExpectationsWereMet())
}
