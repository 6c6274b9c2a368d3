package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// ProfileRepository - доступ к таблице profiles.
type ProfileRepository interface {
	// Get возвращает профиль по id. ErrNotFound, если записи нет.
	Get(ctx context.Context, id string) (*model.Profile, error)
	// ListByIDs возвращает профили для набора id (отсутствующие пропускаются).
	ListByIDs(ctx context.Context, ids []string) ([]*model.Profile, error)
	// Ensure создаёт пустой профиль, если его ещё нет.
	Ensure(ctx context.Context, id string) error
	// ApplyPatch создаёт профиль при отсутствии и применяет только
	// заданные в патче поля.
	ApplyPatch(ctx context.Context, id string, patch model.ProfilePatch) error
	// SetRole создаёт или обновляет роль пользователя.
	SetRole(ctx context.Context, id, role string) error
}

type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

const profileColumns = `id, name, role, location_id, lunch_session, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.LocationID, &p.LunchSession, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *profileRepo) Get(ctx context.Context, id string) (*model.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}

func (r *profileRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = ANY($1)`, profileColumns)

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения профилей: %w", err)
	}
	defer rows.Close()

	var result []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования профиля: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *profileRepo) Ensure(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return fmt.Errorf("ошибка создания профиля: %w", err)
	}
	return nil
}

func (r *profileRepo) ApplyPatch(ctx context.Context, id string, patch model.ProfilePatch) error {
	sets := make([]string, 0, 4)
	args := []any{id}
	add := func(column string, v model.OptionalString) {
		if !v.Set {
			return
		}
		args = append(args, v.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", patch.Name)
	add("location_id", patch.LocationID)
	add("lunch_session", patch.LunchSession)

	return RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
			return fmt.Errorf("ошибка создания профиля: %w", err)
		}
		if len(sets) == 0 {
			return nil
		}
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $1`, strings.Join(sets, ", "))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка обновления профиля: %w", err)
		}
		return nil
	})
}

func (r *profileRepo) SetRole(ctx context.Context, id, role string) error {
	query := `
		INSERT INTO profiles (id, role)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = now()
		WHERE profiles.role IS DISTINCT FROM EXCLUDED.role`

	if _, err := r.db.Exec(ctx, query, id, role); err != nil {
		return fmt.Errorf("ошибка установки роли: %w", err)
	}
	return nil
}
