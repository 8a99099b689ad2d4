package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Create(ctx context.Context, name string, tag ServiceTag, price float64) (*Service, error) {
	// При конфликте имени «касаемся» строки, чтобы RETURNING всегда
	// вернул услугу: существующие тег и цену не перетираем.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO services (name, tag, price) VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, tag, price, active, created_at
	`, name, string(tag), price)
	var s Service
	if err := row.Scan(&s.ID, &s.Name, &s.Tag, &s.Price, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetByName(ctx context.Context, name string) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, tag, price, active, created_at
		FROM services WHERE name = $1
	`, name)
	var s Service
	if err := row.Scan(&s.ID, &s.Name, &s.Tag, &s.Price, &s.Active, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) List(ctx context.Context, onlyActive bool) ([]Service, error) {
	q := `SELECT id, name, tag, price, active, created_at FROM services ORDER BY name`
	if onlyActive {
		q = `SELECT id, name, tag, price, active, created_at FROM services WHERE active ORDER BY name`
	}
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Tag, &s.Price, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET active=$2 WHERE id=$1`, id, active)
	return err
}

// GetServiceTag возвращает тег одной услуги (bath|groom).
func (r *Repo) GetServiceTag(ctx context.Context, id int64) (ServiceTag, error) {
	var tag string
	err := r.pool.QueryRow(ctx, `SELECT tag FROM services WHERE id=$1 AND active`, id).Scan(&tag)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("service %d not found or inactive", id)
	}
	if err != nil {
		return "", err
	}
	return ServiceTag(tag), nil
}

// TagsFor возвращает теги для набора услуг. Если какая-то услуга
// не найдена или неактивна — ошибка: бронь с такой позицией невозможна.
func (r *Repo) TagsFor(ctx context.Context, ids []int64) ([]ServiceTag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tag FROM services WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]ServiceTag, len(ids))
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		byID[id] = ServiceTag(tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ServiceTag, 0, len(ids))
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("service %d not found or inactive", id)
		}
		out = append(out, tag)
	}
	return out, nil
}
