// Пакет meal - правила выбора обеда на день: либо одно горячее блюдо,
// либо полный холодный набор (основное + гарнир + дополнение).
package meal

import (
	"errors"
	"fmt"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// ErrInvalidSelection - выбор не соответствует правилам.
var ErrInvalidSelection = errors.New("некорректный выбор блюд")

// Slot - место блюда в выборе дня.
type Slot string

const (
	SlotHot   Slot = "hot"
	SlotMain  Slot = "main"
	SlotSide  Slot = "side"
	SlotExtra Slot = "extra"
)

// slotCategories - категории, допустимые для каждого слота.
// В слот extra подходит холодное дополнение или снек (чипсы/фрукт).
var slotCategories = map[Slot][]string{
	SlotHot:   {model.CategoryHot},
	SlotMain:  {model.CategoryColdMain},
	SlotSide:  {model.CategoryColdSide},
	SlotExtra: {model.CategoryColdExtra, model.CategorySnackCrisps, model.CategorySnackFruit},
}

// Accepts проверяет, допустима ли категория для слота.
func (s Slot) Accepts(category string) bool {
	for _, c := range slotCategories[s] {
		if c == category {
			return true
		}
	}
	return false
}

// ColdBundle - холодный набор из трёх позиций.
type ColdBundle struct {
	MainID  string
	SideID  string
	ExtraID string
}

// Selection - выбор на день. Заполняется ровно одна из форм.
type Selection struct {
	HotItemID string
	Cold      *ColdBundle
}

// Pick - позиция, выбранная в конкретный слот.
type Pick struct {
	Slot   Slot
	ItemID string
}

// Picks проверяет форму выбора и возвращает позиции по слотам.
// Оба варианта сразу, ни одного или неполный холодный набор - ошибка.
func (s Selection) Picks() ([]Pick, error) {
	hasHot := s.HotItemID != ""
	hasCold := s.Cold != nil && (s.Cold.MainID != "" || s.Cold.SideID != "" || s.Cold.ExtraID != "")

	switch {
	case hasHot && hasCold, !hasHot && !hasCold:
		return nil, fmt.Errorf("%w: выберите что-то одно: горячее блюдо или холодный набор", ErrInvalidSelection)
	case hasHot:
		return []Pick{{Slot: SlotHot, ItemID: s.HotItemID}}, nil
	}

	c := s.Cold
	if c.MainID == "" || c.SideID == "" || c.ExtraID == "" {
		return nil, fmt.Errorf("%w: холодный набор требует основное блюдо, гарнир и дополнение (чипсы/фрукт)", ErrInvalidSelection)
	}
	return []Pick{
		{Slot: SlotMain, ItemID: c.MainID},
		{Slot: SlotSide, ItemID: c.SideID},
		{Slot: SlotExtra, ItemID: c.ExtraID},
	}, nil
}

// Check сверяет выбранные позиции с каталогом: каждая должна
// существовать, быть активной и подходить слоту по категории.
func Check(picks []Pick, items map[string]model.MenuItem) error {
	for _, p := range picks {
		item, ok := items[p.ItemID]
		if !ok {
			return fmt.Errorf("%w: блюдо %s не найдено", ErrInvalidSelection, p.ItemID)
		}
		if !item.Active {
			return fmt.Errorf("%w: блюдо %q в архиве", ErrInvalidSelection, item.Name)
		}
		if !p.Slot.Accepts(item.Category) {
			return fmt.Errorf("%w: блюдо %q (%s) не подходит для слота %s",
				ErrInvalidSelection, item.Name, item.Category, p.Slot)
		}
	}
	return nil
}

// ItemIDs возвращает идентификаторы позиций в порядке слотов.
func ItemIDs(picks []Pick) []string {
	ids := make([]string, len(picks))
	for i, p := range picks {
		ids[i] = p.ItemID
	}
	return ids
}
