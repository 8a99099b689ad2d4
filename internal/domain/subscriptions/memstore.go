package subscriptions

import (
	"context"
	"sync"
	"time"
)

// MemStore — хранилище в памяти: тесты и локальный запуск без БД.
// Семантика Mutate та же, что у PgStore: мьютекс на абонемент,
// запись изменений только после успешного fn.
type MemStore struct {
	mu         sync.Mutex
	subs       map[int64]*Subscription
	links      map[int64]*UsageLink
	locks      map[int64]*sync.Mutex
	nextSubID  int64
	nextLinkID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		subs:  make(map[int64]*Subscription),
		links: make(map[int64]*UsageLink),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (m *MemStore) CreateSubscription(_ context.Context, s *Subscription) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	cp := *s
	cp.ID = m.nextSubID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.subs[cp.ID] = &cp
	m.locks[cp.ID] = &sync.Mutex{}
	return cp.ID, nil
}

func (m *MemStore) GetSubscription(_ context.Context, id int64) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) GetLink(_ context.Context, id int64) (*UsageLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

type memTx struct {
	store *MemStore
	sub   *Subscription // рабочая копия
	saved bool

	inserted []*UsageLink
	updated  map[int64]*UsageLink
}

func (t *memTx) Subscription() *Subscription { return t.sub }

func (t *memTx) GetLink(_ context.Context, id int64) (*UsageLink, error) {
	if l, ok := t.updated[id]; ok {
		cp := *l
		return &cp, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	l, ok := t.store.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (t *memTx) InsertLink(_ context.Context, l *UsageLink) (int64, error) {
	t.store.mu.Lock()
	t.store.nextLinkID++
	id := t.store.nextLinkID
	t.store.mu.Unlock()

	cp := *l
	cp.ID = id
	t.inserted = append(t.inserted, &cp)
	return id, nil
}

func (t *memTx) UpdateLink(_ context.Context, l *UsageLink) error {
	cp := *l
	t.updated[cp.ID] = &cp
	return nil
}

func (t *memTx) SaveSubscription(_ context.Context, s *Subscription) error {
	t.sub = s
	t.saved = true
	return nil
}

func (m *MemStore) Mutate(ctx context.Context, subID int64, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	lock, ok := m.locks[subID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	cp := *m.subs[subID]
	m.mu.Unlock()

	tx := &memTx{store: m, sub: &cp, updated: make(map[int64]*UsageLink)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// fn успешен — применяем накопленные изменения.
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.saved {
		tx.sub.UpdatedAt = now
		saved := *tx.sub
		m.subs[subID] = &saved
	}
	for _, l := range tx.inserted {
		l.CreatedAt = now
		l.UpdatedAt = now
		cp := *l
		m.links[cp.ID] = &cp
	}
	for id, l := range tx.updated {
		l.UpdatedAt = now
		l.CreatedAt = m.links[id].CreatedAt
		cp := *l
		m.links[id] = &cp
	}
	return nil
}

func (m *MemStore) SweepStatuses(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		derived := s.DeriveStatus(now)
		if derived != s.Status && derived != StatusActive {
			s.Status = derived
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListReservedOlderThan(_ context.Context, cutoff time.Time) ([]UsageLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []UsageLink
	for _, l := range m.links {
		if l.State == LinkReserved && l.CreatedAt.Before(cutoff) {
			out = append(out, *l)
		}
	}
	return out, nil
}
