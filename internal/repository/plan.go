package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// PlanRepository - заказы пользователей (plans + plan_lines).
// Заголовок заказа уникален по (user_id, date, location_id).
type PlanRepository interface {
	// ListMine возвращает выбранные пользователем позиции в интервале,
	// упорядоченные по дате, категории и названию.
	ListMine(ctx context.Context, userID, locationID string, r model.DateRange) ([]model.PlannedItem, error)
	// ReplaceDay заменяет выбор пользователя на одну дату.
	ReplaceDay(ctx context.Context, userID, locationID, date string, itemIDs []string) error
	// ReplaceLines заменяет выбор на все даты, встречающиеся в lines.
	// Если clear != nil, сначала удаляются все заказы пользователя в интервале.
	ReplaceLines(ctx context.Context, userID, locationID string, clear *model.DateRange, lines []model.PlanLine) error
}

type planRepo struct {
	db DBTX
}

// NewPlanRepository создаёт репозиторий заказов.
func NewPlanRepository(db DBTX) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) ListMine(ctx context.Context, userID, locationID string, dr model.DateRange) ([]model.PlannedItem, error) {
	query := `
		SELECT pl.date::text, mi.id::text, mi.name, mi.category, mi.active, mi.created_at, mi.updated_at
		FROM plans p
		JOIN plan_lines pl ON pl.plan_id = p.id
		JOIN menu_items mi ON mi.id = pl.item_id
		WHERE p.user_id = $1
		  AND p.location_id = $2
		  AND pl.date BETWEEN $3::date AND $4::date
		ORDER BY pl.date, mi.category, mi.name`

	rows, err := r.db.Query(ctx, query, userID, locationID, dr.From, dr.To)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заказов: %w", err)
	}
	defer rows.Close()

	var result []model.PlannedItem
	for rows.Next() {
		var pi model.PlannedItem
		if err := rows.Scan(&pi.Date, &pi.Item.ID, &pi.Item.Name, &pi.Item.Category,
			&pi.Item.Active, &pi.Item.CreatedAt, &pi.Item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заказа: %w", err)
		}
		result = append(result, pi)
	}
	return result, rows.Err()
}

func (r *planRepo) ReplaceDay(ctx context.Context, userID, locationID, date string, itemIDs []string) error {
	return RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		return replaceDay(ctx, tx, userID, locationID, date, itemIDs)
	})
}

func (r *planRepo) ReplaceLines(ctx context.Context, userID, locationID string, clear *model.DateRange, lines []model.PlanLine) error {
	byDate := make(map[string][]string)
	for _, l := range lines {
		byDate[l.Date] = append(byDate[l.Date], l.ItemID)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		if clear != nil {
			if _, err := tx.Exec(ctx, `
				DELETE FROM plans
				WHERE user_id = $1 AND location_id = $2
				  AND date BETWEEN $3::date AND $4::date`,
				userID, locationID, clear.From, clear.To,
			); err != nil {
				return fmt.Errorf("ошибка очистки заказов: %w", err)
			}
		}
		for _, d := range dates {
			if err := replaceDay(ctx, tx, userID, locationID, d, byDate[d]); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceDay - upsert заголовка, удаление строк даты, вставка новых.
func replaceDay(ctx context.Context, tx pgx.Tx, userID, locationID, date string, itemIDs []string) error {
	var planID string
	err := tx.QueryRow(ctx, `
		INSERT INTO plans (id, user_id, date, location_id)
		VALUES ($1::uuid, $2, $3::date, $4)
		ON CONFLICT (user_id, date, location_id) DO UPDATE SET updated_at = now()
		RETURNING id::text`,
		uuid.NewString(), userID, date, locationID,
	).Scan(&planID)
	if err != nil {
		return fmt.Errorf("ошибка записи заголовка заказа на %s: %w", date, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM plan_lines WHERE plan_id = $1::uuid AND date = $2::date`,
		planID, date,
	); err != nil {
		return fmt.Errorf("ошибка очистки заказа на %s: %w", date, err)
	}

	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO plan_lines (plan_id, date, item_id)
		SELECT $1::uuid, $2::date, unnest($3::uuid[])
		ON CONFLICT DO NOTHING`,
		planID, date, itemIDs,
	); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("заказ на %s: %w", date, ErrDanglingReference)
		}
		return fmt.Errorf("ошибка записи заказа на %s: %w", date, err)
	}
	return nil
}
