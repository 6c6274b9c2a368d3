// Пакет kitchen - свёртка строк заказов в сводку для кухни:
// дата → сессия обеда → блюдо (количество и, опционально, список людей).
// Чистая функция над уже выбранными из БД строками.
package kitchen

import (
	"sort"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// UnknownPerson - имя для строк без профиля или без заданного имени.
const UnknownPerson = "Unknown"

// sessionOrder - фиксированный порядок сессий в выдаче.
var sessionOrder = []string{model.Session1230, model.Session1300, model.SessionUnassigned}

// Options управляет формой сводки.
type Options struct {
	// WithDetails - добавить к каждой сессии список людей по блюдам
	WithDetails bool
	// IncludeEmptySessions - выводить все три сессии даже без заказов
	IncludeEmptySessions bool
}

// ItemCount - количество порций блюда в сессии.
type ItemCount struct {
	ItemID string
	Name   string
	Qty    int
}

// ItemRoster - люди, заказавшие блюдо в сессии.
type ItemRoster struct {
	ItemID string
	Name   string
	People []string
}

// Session - заказы одной сессии обеда.
type Session struct {
	Session string
	Items   []ItemCount
	Details []ItemRoster
}

// Day - сводка на дату.
type Day struct {
	Date     string
	Sessions []Session
}

// SessionOf нормализует lunch_session профиля: неизвестные и пустые
// значения попадают в unassigned.
func SessionOf(s *string) string {
	if s != nil && model.IsValidSession(*s) {
		return *s
	}
	return model.SessionUnassigned
}

type itemAcc struct {
	id     string
	name   string
	qty    int
	people []string
}

// Summarize группирует строки по дате, сессии и блюду.
// Даты по возрастанию, сессии в порядке 12:30, 13:00, unassigned,
// блюда по названию (при равенстве - по id), люди по алфавиту.
func Summarize(rows []model.KitchenRow, opts Options) []Day {
	byDate := make(map[string]map[string]map[string]*itemAcc)

	for _, r := range rows {
		sessions, ok := byDate[r.Date]
		if !ok {
			sessions = make(map[string]map[string]*itemAcc, len(sessionOrder))
			byDate[r.Date] = sessions
		}
		key := SessionOf(r.Session)
		items, ok := sessions[key]
		if !ok {
			items = make(map[string]*itemAcc)
			sessions[key] = items
		}
		acc, ok := items[r.ItemID]
		if !ok {
			acc = &itemAcc{id: r.ItemID, name: r.ItemName}
			items[r.ItemID] = acc
		}
		acc.qty++
		if opts.WithDetails {
			acc.people = append(acc.people, personName(r.PersonName))
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]Day, 0, len(dates))
	for _, d := range dates {
		day := Day{Date: d}
		for _, s := range sessionOrder {
			items := byDate[d][s]
			if len(items) == 0 && !opts.IncludeEmptySessions {
				continue
			}
			day.Sessions = append(day.Sessions, buildSession(s, items, opts.WithDetails))
		}
		out = append(out, day)
	}
	return out
}

func buildSession(name string, items map[string]*itemAcc, withDetails bool) Session {
	accs := make([]*itemAcc, 0, len(items))
	for _, a := range items {
		accs = append(accs, a)
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].name != accs[j].name {
			return accs[i].name < accs[j].name
		}
		return accs[i].id < accs[j].id
	})

	s := Session{Session: name, Items: make([]ItemCount, 0, len(accs))}
	if withDetails {
		s.Details = make([]ItemRoster, 0, len(accs))
	}
	for _, a := range accs {
		s.Items = append(s.Items, ItemCount{ItemID: a.id, Name: a.name, Qty: a.qty})
		if withDetails {
			people := append([]string(nil), a.people...)
			sort.Strings(people)
			s.Details = append(s.Details, ItemRoster{ItemID: a.id, Name: a.name, People: people})
		}
	}
	return s
}

func personName(name *string) string {
	if name == nil || *name == "" {
		return UnknownPerson
	}
	return *name
}
