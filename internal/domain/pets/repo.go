package pets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("pets: not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Create(ctx context.Context, p *Pet) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pets (name, breed, owner_name, owner_phone, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, p.Name, p.Breed, p.OwnerName, p.OwnerPhone, p.Notes).Scan(&id)
	return id, err
}

func (r *Repo) Get(ctx context.Context, id int64) (*Pet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, breed, owner_name, owner_phone, notes, created_at, updated_at
		FROM pets WHERE id=$1
	`, id)
	var p Pet
	err := row.Scan(&p.ID, &p.Name, &p.Breed, &p.OwnerName, &p.OwnerPhone, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Pet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, breed, owner_name, owner_phone, notes, created_at, updated_at
		FROM pets ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pet
	for rows.Next() {
		var p Pet
		if err := rows.Scan(&p.ID, &p.Name, &p.Breed, &p.OwnerName, &p.OwnerPhone, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, p *Pet) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pets SET name=$2, breed=$3, owner_name=$4, owner_phone=$5, notes=$6, updated_at=now()
		WHERE id=$1
	`, p.ID, p.Name, p.Breed, p.OwnerName, p.OwnerPhone, p.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
