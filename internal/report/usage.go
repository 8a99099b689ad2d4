package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/groom-salon/internal/domain/subscriptions"
)

// Row — одна строка отчёта: связка с бронью и контекстом питомца.
type Row struct {
	LinkID    int64
	PetName   string
	Weight    int
	State     subscriptions.LinkState
	CreatedAt time.Time
}

// Repo достаёт данные отчёта одним запросом.
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Rows(ctx context.Context, subID int64) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, p.name, l.weight, l.state, l.created_at
		FROM usage_links l
		JOIN subscriptions s ON s.id = l.subscription_id
		JOIN pets p ON p.id = s.pet_id
		WHERE l.subscription_id = $1
		ORDER BY l.created_at
	`, subID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.LinkID, &row.PetName, &row.Weight, &row.State, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// BuildUsageXLSX собирает Excel-отчёт по абонементу: шапка со
// сводкой и по строке на каждую связку.
func BuildUsageXLSX(subID int64, u *subscriptions.Usage, rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	summary := []interface{}{
		fmt.Sprintf("Абонемент %d", subID),
		fmt.Sprintf("использовано %d", u.Used),
		fmt.Sprintf("остаток %d", u.Remaining),
		fmt.Sprintf("до %s", u.EndDate.Format("02.01.2006")),
		string(u.Status),
	}
	if err := f.SetSheetRow(sheet, "A1", &summary); err != nil {
		return nil, err
	}

	header := []interface{}{"link_id", "Питомец", "Единицы", "Статус", "Дата"}
	if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
		return nil, err
	}

	n := 4
	for _, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			r.LinkID,
			r.PetName,
			r.Weight,
			stateTitle(r.State),
			r.CreatedAt.Format("02.01.2006 15:04"),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
		n++
	}
	return f, nil
}

func stateTitle(st subscriptions.LinkState) string {
	switch st {
	case subscriptions.LinkReserved:
		return "резерв"
	case subscriptions.LinkConfirmed:
		return "списано"
	case subscriptions.LinkReleased:
		return "возвращено"
	default:
		return string(st)
	}
}
