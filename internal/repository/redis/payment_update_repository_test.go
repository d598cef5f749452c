package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-lightning/internal/models"
	"github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

func TestPaymentUpdates_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewRedisPaymentUpdateRepository(db, logger.InitializeTestZapLogger())

	upd := &models.PaymentUpdate{
		EventID:      "ev-1",
		PaymentHash:  testHash,
		Status:       models.PaymentStatusPaid,
		UpdatedCount: 2,
	}
	data, err := json.Marshal(upd)
	require.NoError(t, err)

	mock.ExpectPublish("payments:"+testHash, string(data)).SetVal(1)

	require.NoError(t, repo.Publish(context.Background(), upd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentUpdates_PublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewRedisPaymentUpdateRepository(db, logger.InitializeTestZapLogger())

	upd := &models.PaymentUpdate{PaymentHash: testHash, Status: models.PaymentStatusExpired}
	data, err := json.Marshal(upd)
	require.NoError(t, err)

	mock.ExpectPublish("payments:"+testHash, string(data)).SetErr(errors.New("connection refused"))

	assert.Error(t, repo.Publish(context.Background(), upd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })
	return cli
}

func receiveUpdate(t *testing.T, sub PaymentUpdateSubscription) (*models.PaymentUpdate, bool) {
	t.Helper()

	select {
	case upd, ok := <-sub.Updates():
		return upd, ok
	case <-time.After(2 * time.Second):
		t.Fatal("no payment update received")
		return nil, false
	}
}

func TestPaymentUpdates_Subscribe(t *testing.T) {
	ctx := context.Background()
	cli := newMiniredisClient(t)
	repo := NewRedisPaymentUpdateRepository(cli, logger.InitializeTestZapLogger())

	sub, err := repo.Subscribe(ctx, testHash)
	require.NoError(t, err)
	defer sub.Close()

	// Malformed payloads and other payments' updates never reach the subscriber.
	require.NoError(t, cli.Publish(ctx, "payments:"+testHash, "not json").Err())
	require.NoError(t, repo.Publish(ctx, &models.PaymentUpdate{PaymentHash: "other", Status: models.PaymentStatusPaid}))

	want := &models.PaymentUpdate{
		EventID:      "ev-1",
		PaymentHash:  testHash,
		Status:       models.PaymentStatusPaid,
		UpdatedCount: 2,
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Publish(ctx, want))

	got, ok := receiveUpdate(t, sub)
	require.True(t, ok)
	assert.Equal(t, want.EventID, got.EventID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.UpdatedCount, got.UpdatedCount)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	require.NoError(t, sub.Close())
	_, ok = receiveUpdate(t, sub)
	assert.False(t, ok)
	assert.NoError(t, sub.Close())
}

func TestPaymentUpdates_SubscribeEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := NewRedisPaymentUpdateRepository(newMiniredisClient(t), logger.InitializeTestZapLogger())

	sub, err := repo.Subscribe(ctx, testHash)
	require.NoError(t, err)
	defer sub.Close()

	cancel()
	_, ok := receiveUpdate(t, sub)
	assert.False(t, ok)
}

func TestPaymentUpdates_SubscribeUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer cli.Close()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisPaymentUpdateRepository(cli, logger.InitializeTestZapLogger()).Subscribe(ctx, testHash)
	assert.Error(t, err)
}
