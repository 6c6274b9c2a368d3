package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// DailyMenuRepository - доступ к назначениям блюд на даты (daily_menu).
type DailyMenuRepository interface {
	// ListRange возвращает назначения по датам (по возрастанию) в интервале.
	ListRange(ctx context.Context, locationID string, r model.DateRange) ([]model.DayOptions, error)
	// ReplaceDays для каждой переданной даты удаляет прежние назначения
	// и вставляет новые. Всё в одной транзакции.
	ReplaceDays(ctx context.Context, locationID string, days []model.DayOptions) error
}

type dailyMenuRepo struct {
	db DBTX
}

// NewDailyMenuRepository создаёт репозиторий назначений блюд.
func NewDailyMenuRepository(db DBTX) DailyMenuRepository {
	return &dailyMenuRepo{db: db}
}

func (r *dailyMenuRepo) ListRange(ctx context.Context, locationID string, dr model.DateRange) ([]model.DayOptions, error) {
	query := `
		SELECT date::text, array_agg(item_id::text ORDER BY item_id)
		FROM daily_menu
		WHERE location_id = $1 AND date BETWEEN $2::date AND $3::date
		GROUP BY date
		ORDER BY date`

	rows, err := r.db.Query(ctx, query, locationID, dr.From, dr.To)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения назначений: %w", err)
	}
	defer rows.Close()

	result := make([]model.DayOptions, 0)
	for rows.Next() {
		var d model.DayOptions
		if err := rows.Scan(&d.Date, &d.ItemIDs); err != nil {
			return nil, fmt.Errorf("ошибка сканирования назначений: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *dailyMenuRepo) ReplaceDays(ctx context.Context, locationID string, days []model.DayOptions) error {
	return RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, d := range days {
			if _, err := tx.Exec(ctx,
				`DELETE FROM daily_menu WHERE location_id = $1 AND date = $2::date`,
				locationID, d.Date,
			); err != nil {
				return fmt.Errorf("ошибка очистки назначений на %s: %w", d.Date, err)
			}
			if len(d.ItemIDs) == 0 {
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO daily_menu (location_id, date, item_id)
				SELECT $1, $2::date, unnest($3::uuid[])
				ON CONFLICT DO NOTHING`,
				locationID, d.Date, d.ItemIDs,
			); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("назначения на %s: %w", d.Date, ErrDanglingReference)
				}
				return fmt.Errorf("ошибка записи назначений на %s: %w", d.Date, err)
			}
		}
		return nil
	})
}
