// Пакет rbac - роли Lunch Planner и правила их сравнения.
// Роль хранится в профиле пользователя; отсутствие профиля = staff.
// Master-администраторы (по email из конфигурации) всегда получают admin.
package rbac

import "strings"

// Роли в порядке возрастания привилегий.
const (
	RoleStaff    = "staff"
	RoleCatering = "catering"
	RoleAdmin    = "admin"
)

// DefaultRole - роль пользователя без профиля.
const DefaultRole = RoleStaff

// roleWeight - вес роли для сравнения.
var roleWeight = map[string]int{
	RoleStaff:    1,
	RoleCatering: 2,
	RoleAdmin:    3,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// EffectiveRole возвращает сохранённую роль или DefaultRole,
// если роль не задана или неизвестна.
func EffectiveRole(stored *string) string {
	if stored == nil || !IsValidRole(*stored) {
		return DefaultRole
	}
	return *stored
}

// Allowed сообщает, входит ли role в набор разрешённых ролей.
// Пустой набор разрешает любую роль (достаточно аутентификации).
func Allowed(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// MasterAdmins - неизменяемый набор email master-администраторов.
type MasterAdmins struct {
	emails map[string]struct{}
}

// NewMasterAdmins создаёт набор; email сравниваются без учёта регистра.
func NewMasterAdmins(emails []string) *MasterAdmins {
	m := &MasterAdmins{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			m.emails[e] = struct{}{}
		}
	}
	return m
}

// Contains проверяет, является ли email адресом master-администратора.
func (m *MasterAdmins) Contains(email string) bool {
	if m == nil || email == "" {
		return false
	}
	_, ok := m.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Len возвращает число адресов в наборе.
func (m *MasterAdmins) Len() int {
	if m == nil {
		return 0
	}
	return len(m.emails)
}
