package model

import "time"

// Категории блюд.
const (
	CategoryHot         = "hot"
	CategoryColdMain    = "cold_main"
	CategoryColdSide    = "cold_side"
	CategoryColdExtra   = "cold_extra"
	CategorySnackCrisps = "snack_crisps"
	CategorySnackFruit  = "snack_fruit"
)

// categoryOrder - порядок категорий, совпадает с сортировкой каталога.
var categoryOrder = []string{
	CategoryHot, CategoryColdMain, CategoryColdSide,
	CategoryColdExtra, CategorySnackCrisps, CategorySnackFruit,
}

// Categories возвращает список допустимых категорий.
func Categories() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// IsValidCategory проверяет, является ли строка допустимой категорией.
func IsValidCategory(c string) bool {
	for _, known := range categoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// MenuItem - позиция каталога блюд.
type MenuItem struct {
	ID       string
	Name     string
	Category string
	// Active - false для архивных позиций
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MenuItemPatch - частичное обновление позиции. nil - поле не меняется.
type MenuItemPatch struct {
	Name     *string
	Category *string
	Active   *bool
}

// IsEmpty сообщает, что патч не содержит изменений.
func (p MenuItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Active == nil
}

// DayOptions - блюда, доступные на дату в локации.
type DayOptions struct {
	Date    string
	ItemIDs []string
}
