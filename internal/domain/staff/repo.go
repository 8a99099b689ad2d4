package staff

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("staff: not found")

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Get(ctx context.Context, id int64) (*Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, role, active, created_at, updated_at
		FROM staff WHERE id = $1
	`, id)
	var m Member
	if err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Upsert по телефону. Админа при повторной записи не понижаем.
func (r *Repo) Upsert(ctx context.Context, m Member) (*Member, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO staff (name, phone, role)
		VALUES ($1,$2,$3)
		ON CONFLICT (phone)
		DO UPDATE SET
			name = EXCLUDED.name,
			role = CASE WHEN staff.role = 'admin' THEN staff.role ELSE EXCLUDED.role END,
			updated_at = now()
		RETURNING id, name, phone, role, active, created_at, updated_at
	`, m.Name, m.Phone, string(m.Role))

	var out Member
	if err := row.Scan(&out.ID, &out.Name, &out.Phone, &out.Role, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) ListByRole(ctx context.Context, role Role) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, role, active, created_at, updated_at
		FROM staff WHERE role = $1 AND active ORDER BY name
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
