package reservations

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Spok95/groom-salon/internal/domain/catalog"
	"github.com/Spok95/groom-salon/internal/domain/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore — брони в памяти; failCreate имитирует отказ записи.
type fakeStore struct {
	byID          map[int64]*Reservation
	nextID        int64
	failCreate    bool
	failSetStatus bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[int64]*Reservation)}
}

func (f *fakeStore) Create(_ context.Context, r *Reservation) (int64, error) {
	if f.failCreate {
		return 0, errors.New("storage down")
	}
	f.nextID++
	cp := *r
	cp.ID = f.nextID
	f.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (*Reservation, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id int64, st Status) error {
	if f.failSetStatus {
		return errors.New("storage down")
	}
	r, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = st
	return nil
}

func (f *fakeStore) LiveLinkIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for _, r := range f.byID {
		if r.LinkID == nil {
			continue
		}
		for _, id := range ids {
			if *r.LinkID == id {
				out[id] = struct{}{}
			}
		}
	}
	return out, nil
}

// fakeCatalog: нечётные id — мытьё, чётные — стрижка.
type fakeCatalog struct{}

func (fakeCatalog) TagsFor(_ context.Context, ids []int64) ([]catalog.ServiceTag, error) {
	out := make([]catalog.ServiceTag, 0, len(ids))
	for _, id := range ids {
		if id%2 == 1 {
			out = append(out, catalog.TagBath)
		} else {
			out = append(out, catalog.TagGroom)
		}
	}
	return out, nil
}

const actor = int64(7)

func setup(t *testing.T) (*Coordinator, *fakeStore, *subscriptions.Ledger) {
	t.Helper()
	ledger := subscriptions.NewLedger(subscriptions.NewMemStore(), slog.Default())
	store := newFakeStore()
	c := NewCoordinator(store, ledger, fakeCatalog{}, nil, slog.Default())
	return c, store, ledger
}

func newSub(t *testing.T, l *subscriptions.Ledger, limit int) *subscriptions.Subscription {
	t.Helper()
	now := time.Now()
	s, err := l.CreateSubscription(context.Background(), actor, 100, limit, now.AddDate(0, 0, -1), now.AddDate(0, 1, 0))
	require.NoError(t, err)
	return s
}

func TestCreateWithSubscription(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	// мытьё (1) + стрижка (4) = 5 единиц
	res, err := c.Create(ctx, actor, CreateInput{
		PetID:          1,
		ServiceIDs:     []int64{1, 2},
		StartsAt:       time.Now().Add(24 * time.Hour),
		SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, res.LinkID)

	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, u.Remaining)
	assert.Equal(t, 0, u.Used)
}

func TestCreateWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID:      1,
		ServiceIDs: []int64{1},
		StartsAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.Nil(t, res.LinkID)
}

func TestCreateCompensatesOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	c, store, ledger := setup(t)
	sub := newSub(t, ledger, 10)
	store.failCreate = true

	_, err := c.Create(ctx, actor, CreateInput{
		PetID:          1,
		ServiceIDs:     []int64{1},
		StartsAt:       time.Now(),
		SubscriptionID: &sub.ID,
	})
	require.Error(t, err)

	// Резерв снят: ёмкость не зависла за несуществующей бронью
	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, u.Remaining)
}

func TestCancelReleasesReserve(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{2}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)

	require.NoError(t, c.Cancel(ctx, actor, res.ID))

	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, u.Remaining)

	got, err := c.store.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCompleteConfirmsUsage(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{2}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)

	require.NoError(t, c.Complete(ctx, actor, res.ID))

	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, u.Used)
	assert.Equal(t, 6, u.Remaining)
}

func TestCancelAfterCompleteRejected(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{1}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, actor, res.ID))

	err = c.Cancel(ctx, actor, res.ID)
	require.ErrorIs(t, err, subscriptions.ErrCannotCancelConfirmed)

	// Счётчики не изменились
	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)
}

func TestDoubleCompleteRejected(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{1}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, actor, res.ID))
	require.ErrorIs(t, c.Complete(ctx, actor, res.ID), ErrInvalidStatus)
}

func TestCompleteRetryAfterStatusFailure(t *testing.T) {
	ctx := context.Background()
	c, store, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{2}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)

	// Списание подтвердилось, а статус брони записать не удалось
	store.failSetStatus = true
	require.Error(t, c.Complete(ctx, actor, res.ID))

	link, err := ledger.GetLink(ctx, *res.LinkID)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.LinkConfirmed, link.State)

	// Повтор дожимает статус, не пытаясь подтвердить второй раз
	store.failSetStatus = false
	require.NoError(t, c.Complete(ctx, actor, res.ID))

	got, err := store.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	// Списание учтено ровно один раз
	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, u.Used)
	assert.Equal(t, 6, u.Remaining)
}

func TestCompleteWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	res, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{1}, StartsAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, actor, res.ID))
}

func TestReserveFailurePropagates(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 2) // стрижка (4 ед.) не влезает

	_, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{2}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.ErrorIs(t, err, subscriptions.ErrInsufficientQuota)
}

func TestReconcileOrphans(t *testing.T) {
	ctx := context.Background()
	c, _, ledger := setup(t)
	sub := newSub(t, ledger, 10)

	// Живая бронь с резервом — её трогать нельзя
	_, err := c.Create(ctx, actor, CreateInput{
		PetID: 1, ServiceIDs: []int64{1}, StartsAt: time.Now(), SubscriptionID: &sub.ID,
	})
	require.NoError(t, err)

	// Осиротевший резерв: есть в леджере, брони нет
	orphan, err := ledger.ReserveUsage(ctx, actor, sub.ID, 2)
	require.NoError(t, err)

	released, err := c.ReconcileOrphans(ctx, actor, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := ledger.GetLink(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.LinkReleased, got.State)

	// Резерв живой брони остался на месте
	u, err := ledger.GetUsage(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, u.Remaining)
}
