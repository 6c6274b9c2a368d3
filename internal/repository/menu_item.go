package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// MenuItemRepository - доступ к каталогу блюд (menu_items).
type MenuItemRepository interface {
	// List возвращает позиции, отсортированные по (category, name).
	List(ctx context.Context, includeInactive bool) ([]model.MenuItem, error)
	// GetByID возвращает позицию по id. ErrNotFound, если нет.
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)
	// GetByIDs возвращает найденные позиции, ключ - id.
	GetByIDs(ctx context.Context, ids []string) (map[string]model.MenuItem, error)
	// FindByName ищет позицию по имени без учёта регистра;
	// активная позиция приоритетнее архивной. ErrNotFound, если нет.
	FindByName(ctx context.Context, name string) (*model.MenuItem, error)
	// Insert добавляет позицию. ErrConflict при дубликате активного имени.
	Insert(ctx context.Context, item *model.MenuItem) error
	// Update применяет частичное изменение. ErrNotFound / ErrConflict.
	Update(ctx context.Context, id string, patch model.MenuItemPatch) error
	// Reactivate делает позицию активной с новым написанием имени;
	// категория меняется, только если задана.
	Reactivate(ctx context.Context, id, name string, category *string) error
	// Delete физически удаляет позицию. ErrReferenced, если она используется.
	Delete(ctx context.Context, id string) error
}

type menuItemRepo struct {
	db DBTX
}

// NewMenuItemRepository создаёт репозиторий каталога блюд.
func NewMenuItemRepository(db DBTX) MenuItemRepository {
	return &menuItemRepo{db: db}
}

const menuItemColumns = `id::text, name, category, active, created_at, updated_at`

func scanMenuItem(row pgx.Row) (model.MenuItem, error) {
	var it model.MenuItem
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *menuItemRepo) List(ctx context.Context, includeInactive bool) ([]model.MenuItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM menu_items
		WHERE $1 OR active
		ORDER BY category, name, id`, menuItemColumns)

	rows, err := r.db.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	defer rows.Close()

	result := make([]model.MenuItem, 0)
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (r *menuItemRepo) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM menu_items WHERE id = $1::uuid`, menuItemColumns)

	it, err := scanMenuItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения позиции: %w", err)
	}
	return &it, nil
}

func (r *menuItemRepo) GetByIDs(ctx context.Context, ids []string) (map[string]model.MenuItem, error) {
	result := make(map[string]model.MenuItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM menu_items WHERE id = ANY($1::uuid[])`, menuItemColumns)

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		result[it.ID] = it
	}
	return result, rows.Err()
}

func (r *menuItemRepo) FindByName(ctx context.Context, name string) (*model.MenuItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM menu_items
		WHERE lower(name) = lower($1)
		ORDER BY active DESC, updated_at DESC
		LIMIT 1`, menuItemColumns)

	it, err := scanMenuItem(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска позиции по имени: %w", err)
	}
	return &it, nil
}

func (r *menuItemRepo) Insert(ctx context.Context, item *model.MenuItem) error {
	query := `
		INSERT INTO menu_items (id, name, category, active)
		VALUES ($1::uuid, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, item.ID, item.Name, item.Category, item.Active).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка добавления позиции: %w", err)
	}
	return nil
}

func (r *menuItemRepo) Update(ctx context.Context, id string, patch model.MenuItemPatch) error {
	sets := make([]string, 0, 4)
	args := []any{id}
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Category != nil {
		args = append(args, *patch.Category)
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}
	if patch.Active != nil {
		args = append(args, *patch.Active)
		sets = append(sets, fmt.Sprintf("active = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE menu_items SET %s WHERE id = $1::uuid`, strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка обновления позиции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuItemRepo) Reactivate(ctx context.Context, id, name string, category *string) error {
	query := `
		UPDATE menu_items SET
			name = $2,
			category = COALESCE($3, category),
			active = true,
			updated_at = now()
		WHERE id = $1::uuid`

	tag, err := r.db.Exec(ctx, query, id, name, category)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка восстановления позиции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuItemRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE id = $1::uuid`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrReferenced
		}
		return fmt.Errorf("ошибка удаления позиции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
