package subscriptions

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *MemStore) {
	t.Helper()
	store := NewMemStore()
	return NewLedger(store, slog.Default()), store
}

func newActiveSub(t *testing.T, l *Ledger, limit int) *Subscription {
	t.Helper()
	now := time.Now()
	s, err := l.CreateSubscription(context.Background(), 1, 100, limit, now.AddDate(0, 0, -1), now.AddDate(0, 1, 0))
	require.NoError(t, err)
	return s
}

func TestReserveConfirmRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, LinkReserved, link.State)

	u, err := l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used) // резерв — ещё не использование
	assert.Equal(t, 2, u.Remaining)

	require.NoError(t, l.ConfirmUsage(ctx, 1, link.ID))

	u, err = l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, u.Used)
	assert.Equal(t, 2, u.Remaining)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 3)
	require.NoError(t, err)
	require.NoError(t, l.ReleaseUsage(ctx, 1, link.ID))

	u, err := l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, 5, u.Remaining) // полный возврат

	got, err := l.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, LinkReleased, got.State)
}

func TestReserveInsufficientQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	_, err := l.ReserveUsage(ctx, 1, sub.ID, 3)
	require.NoError(t, err)

	_, err = l.ReserveUsage(ctx, 1, sub.ID, 3)
	require.ErrorIs(t, err, ErrInsufficientQuota)

	// Счётчики не тронуты вторым вызовом
	u, err := l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Remaining)
}

func TestReserveExpired(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	now := time.Now()
	sub, err := l.CreateSubscription(ctx, 1, 100, 5, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0))
	require.NoError(t, err)

	ok, err := l.CheckAvailability(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.ReserveUsage(ctx, 1, sub.ID, 1)
	require.ErrorIs(t, err, ErrExpired)
}

func TestCheckAvailabilityFutureStart(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	now := time.Now()
	// Срок ещё не начался: недоступен, хотя единицы не тронуты
	sub, err := l.CreateSubscription(ctx, 1, 100, 5, now.AddDate(0, 0, 7), now.AddDate(0, 1, 0))
	require.NoError(t, err)

	ok, err := l.CheckAvailability(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.ReserveUsage(ctx, 1, sub.ID, 1)
	require.ErrorIs(t, err, ErrExpired)
}

func TestReserveCancelled(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)
	require.NoError(t, l.CancelSubscription(ctx, 1, sub.ID))

	ok, err := l.CheckAvailability(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.ReserveUsage(ctx, 1, sub.ID, 1)
	require.ErrorIs(t, err, ErrExpired)
}

func TestDoubleConfirmRejected(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 2)
	require.NoError(t, err)
	require.NoError(t, l.ConfirmUsage(ctx, 1, link.ID))

	err = l.ConfirmUsage(ctx, 1, link.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	// Подтверждение учтено ровно один раз
	u, err := l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Used)
	assert.Equal(t, 3, u.Remaining)
}

func TestReleaseAfterConfirmRejected(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 2)
	require.NoError(t, err)
	require.NoError(t, l.ConfirmUsage(ctx, 1, link.ID))
	require.ErrorIs(t, l.ReleaseUsage(ctx, 1, link.ID), ErrInvalidState)
}

func TestDoubleReleaseRejected(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 2)
	require.NoError(t, err)
	require.NoError(t, l.ReleaseUsage(ctx, 1, link.ID))
	// Повторный release — ошибка, а не no-op
	require.ErrorIs(t, l.ReleaseUsage(ctx, 1, link.ID), ErrInvalidState)
}

func TestConcurrentReserveRace(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 3) // хватает ровно на один резерв по 2

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.ReserveUsage(ctx, 1, sub.ID, 2)
		}(i)
	}
	wg.Wait()

	var okCount, quotaCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		default:
			require.ErrorIs(t, err, ErrInsufficientQuota)
			quotaCount++
		}
	}
	assert.Equal(t, 1, okCount, "ровно один резерв должен пройти")
	assert.Equal(t, 1, quotaCount)

	u, err := l.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Remaining)
}

func TestReserveInvalidArgument(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 5)

	_, err := l.ReserveUsage(ctx, 1, sub.ID, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.ReserveUsage(ctx, 1, sub.ID, -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReserveUnknownSubscription(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_, err := l.ReserveUsage(ctx, 1, 42, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAutoUpdateStatus(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	now := time.Now()

	expired, err := l.CreateSubscription(ctx, 1, 100, 5, now.AddDate(0, -2, 0), now.AddDate(0, 0, -1))
	require.NoError(t, err)

	exhausted := newActiveSub(t, l, 2)
	link, err := l.ReserveUsage(ctx, 1, exhausted.ID, 2)
	require.NoError(t, err)
	require.NoError(t, l.ConfirmUsage(ctx, 1, link.ID))

	cancelled := newActiveSub(t, l, 5)
	require.NoError(t, l.CancelSubscription(ctx, 1, cancelled.ID))

	_, err = l.AutoUpdateStatus(ctx)
	require.NoError(t, err)

	u, err := l.GetUsage(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, u.Status)

	u, err = l.GetUsage(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, u.Status)

	// Отмена метлой не перебивается
	u, err = l.GetUsage(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, u.Status)
}

func TestReleaseRestoresExhausted(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	sub := newActiveSub(t, l, 2)

	link, err := l.ReserveUsage(ctx, 1, sub.ID, 2)
	require.NoError(t, err)

	ok, err := l.CheckAvailability(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok) // всё в резерве

	require.NoError(t, l.ReleaseUsage(ctx, 1, link.ID))

	ok, err = l.CheckAvailability(ctx, sub.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
