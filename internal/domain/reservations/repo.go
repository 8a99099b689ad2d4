package reservations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store — хранилище броней, каким его видит координатор.
type Store interface {
	Create(ctx context.Context, r *Reservation) (int64, error)
	Get(ctx context.Context, id int64) (*Reservation, error)
	SetStatus(ctx context.Context, id int64, st Status) error
	// LiveLinkIDs — какие из переданных связок привязаны хоть
	// к какой-то брони (для поиска осиротевших резервов).
	LiveLinkIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
}

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Create(ctx context.Context, res *Reservation) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reservations (pet_id, service_ids, starts_at, status, link_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, res.PetID, res.ServiceIDs, res.StartsAt, string(res.Status), res.LinkID).Scan(&id)
	return id, err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, pet_id, service_ids, starts_at, status, link_id, created_at, updated_at
		FROM reservations WHERE id=$1
	`, id)
	var res Reservation
	err := row.Scan(&res.ID, &res.PetID, &res.ServiceIDs, &res.StartsAt, &res.Status, &res.LinkID, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Repo) SetStatus(ctx context.Context, id int64, st Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations SET status=$2, updated_at=now() WHERE id=$1
	`, id, string(st))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) LiveLinkIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT link_id FROM reservations WHERE link_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
