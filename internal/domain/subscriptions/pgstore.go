package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore — постоянное хранилище на Postgres. Критическая секция
// Mutate — транзакция с SELECT ... FOR UPDATE по строке абонемента:
// конкуренция только в рамках одного абонемента.
type PgStore struct{ pool *pgxpool.Pool }

func NewPgStore(pool *pgxpool.Pool) *PgStore { return &PgStore{pool: pool} }

const subColumns = `id, pet_id, start_date, end_date, total_limit, reserved_count, confirmed_count, status, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.PetID, &s.StartDate, &s.EndDate, &s.TotalLimit,
		&s.ReservedCount, &s.ConfirmedCount, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (st *PgStore) CreateSubscription(ctx context.Context, s *Subscription) (int64, error) {
	var id int64
	err := st.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (pet_id, start_date, end_date, total_limit, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, s.PetID, s.StartDate, s.EndDate, s.TotalLimit, string(s.Status)).Scan(&id)
	return id, err
}

func (st *PgStore) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	row := st.pool.QueryRow(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1`, id)
	return scanSubscription(row)
}

const linkColumns = `id, subscription_id, weight, state, actor_id, created_at, updated_at`

func scanLink(row pgx.Row) (*UsageLink, error) {
	var l UsageLink
	err := row.Scan(&l.ID, &l.SubscriptionID, &l.Weight, &l.State, &l.ActorID, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (st *PgStore) GetLink(ctx context.Context, id int64) (*UsageLink, error) {
	row := st.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM usage_links WHERE id=$1`, id)
	return scanLink(row)
}

type pgTx struct {
	tx  pgx.Tx
	sub *Subscription
}

func (t *pgTx) Subscription() *Subscription { return t.sub }

func (t *pgTx) GetLink(ctx context.Context, id int64) (*UsageLink, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+linkColumns+` FROM usage_links WHERE id=$1 FOR UPDATE`, id)
	return scanLink(row)
}

func (t *pgTx) InsertLink(ctx context.Context, l *UsageLink) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO usage_links (subscription_id, weight, state, actor_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, l.SubscriptionID, l.Weight, string(l.State), l.ActorID).Scan(&id)
	return id, err
}

func (t *pgTx) UpdateLink(ctx context.Context, l *UsageLink) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE usage_links SET state=$2, actor_id=$3, updated_at=now() WHERE id=$1
	`, l.ID, string(l.State), l.ActorID)
	return err
}

func (t *pgTx) SaveSubscription(ctx context.Context, s *Subscription) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE subscriptions
		SET reserved_count=$2, confirmed_count=$3, status=$4, updated_at=now()
		WHERE id=$1
	`, s.ID, s.ReservedCount, s.ConfirmedCount, string(s.Status))
	return err
}

func (st *PgStore) Mutate(ctx context.Context, subID int64, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := st.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1 FOR UPDATE`, subID)
	sub, err := scanSubscription(row)
	if err != nil {
		return err
	}

	if err := fn(ctx, &pgTx{tx: tx, sub: sub}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (st *PgStore) SweepStatuses(ctx context.Context, now time.Time) (int64, error) {
	// Два прохода: сначала просроченные по дате, затем исчерпанные
	// по счётчикам. cancelled не трогаем.
	expired, err := st.pool.Exec(ctx, `
		UPDATE subscriptions SET status='expired', updated_at=now()
		WHERE status IN ('active','exhausted') AND end_date < $1
	`, now)
	if err != nil {
		return 0, err
	}
	exhausted, err := st.pool.Exec(ctx, `
		UPDATE subscriptions SET status='exhausted', updated_at=now()
		WHERE status='active' AND end_date >= $1
		  AND reserved_count + confirmed_count >= total_limit
	`, now)
	if err != nil {
		return expired.RowsAffected(), err
	}
	return expired.RowsAffected() + exhausted.RowsAffected(), nil
}

func (st *PgStore) ListReservedOlderThan(ctx context.Context, cutoff time.Time) ([]UsageLink, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT `+linkColumns+` FROM usage_links
		WHERE state='reserved' AND created_at < $1
		ORDER BY created_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageLink
	for rows.Next() {
		var l UsageLink
		if err := rows.Scan(&l.ID, &l.SubscriptionID, &l.Weight, &l.State, &l.ActorID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
