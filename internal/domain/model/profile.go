// Пакет model - доменные модели Lunch Planner.
package model

import "time"

// Сессии обеда (смены в столовой).
const (
	Session1230       = "12:30"
	Session1300       = "13:00"
	SessionUnassigned = "unassigned"
)

// Principal - аутентифицированный субъект из токена IdP.
// Не хранится в БД, только читается из claims.
type Principal struct {
	// ID - subject (sub) из токена Keycloak
	ID string
	// Email - адрес электронной почты из claims
	Email string
	// Name - отображаемое имя (name или preferred_username)
	Name string
}

// Profile - локальные атрибуты пользователя. Одна запись на Principal.ID.
type Profile struct {
	ID           string
	Name         *string
	Role         string
	LocationID   *string
	LunchSession *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsValidSession проверяет значение сессии обеда.
func IsValidSession(s string) bool {
	return s == Session1230 || s == Session1300
}

// DirectoryUser - пользователь из каталога IdP, дополненный ролью из профиля.
type DirectoryUser struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Enabled   bool
	// Name - имя из профиля (если задано)
	Name *string
	// Role - роль из профиля (staff, если профиля нет)
	Role string
	// LocationID и LunchSession - из профиля
	LocationID   *string
	LunchSession *string
}

// OptionalString - поле частичного обновления: Set=false - ключ
// отсутствовал, Set=true и Value=nil - явный null (очистить поле).
type OptionalString struct {
	Set   bool
	Value *string
}

// ProfilePatch - self-service изменение профиля. Роль сюда не входит.
type ProfilePatch struct {
	Name         OptionalString
	LocationID   OptionalString
	LunchSession OptionalString
}

// IsEmpty сообщает, что патч не содержит ни одного ключа.
func (p ProfilePatch) IsEmpty() bool {
	return !p.Name.Set && !p.LocationID.Set && !p.LunchSession.Set
}
