package repository

import (
	"context"
	"fmt"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// KitchenRepository - плоская выборка строк заказов для кухонной сводки.
type KitchenRepository interface {
	// Rows возвращает строки заказов локации в интервале вместе с
	// названием блюда, именем и сессией владельца (если есть профиль).
	Rows(ctx context.Context, locationID string, r model.DateRange) ([]model.KitchenRow, error)
}

type kitchenRepo struct {
	db DBTX
}

// NewKitchenRepository создаёт репозиторий кухонной выборки.
func NewKitchenRepository(db DBTX) KitchenRepository {
	return &kitchenRepo{db: db}
}

func (r *kitchenRepo) Rows(ctx context.Context, locationID string, dr model.DateRange) ([]model.KitchenRow, error) {
	query := `
		SELECT pl.date::text, pl.item_id::text, mi.name, p.user_id, pr.name, pr.lunch_session
		FROM plan_lines pl
		JOIN plans p ON p.id = pl.plan_id
		JOIN menu_items mi ON mi.id = pl.item_id
		LEFT JOIN profiles pr ON pr.id = p.user_id
		WHERE p.location_id = $1
		  AND pl.date BETWEEN $2::date AND $3::date
		ORDER BY pl.date`

	rows, err := r.db.Query(ctx, query, locationID, dr.From, dr.To)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки для кухни: %w", err)
	}
	defer rows.Close()

	var result []model.KitchenRow
	for rows.Next() {
		var kr model.KitchenRow
		if err := rows.Scan(&kr.Date, &kr.ItemID, &kr.ItemName, &kr.UserID, &kr.PersonName, &kr.Session); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки для кухни: %w", err)
		}
		result = append(result, kr)
	}
	return result, rows.Err()
}
