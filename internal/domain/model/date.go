package model

import (
	"fmt"
	"time"
)

// monthLayout - формат месяца YYYY-MM.
const monthLayout = "2006-01"

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректная дата %q, ожидается YYYY-MM-DD", s)
	}
	return d, nil
}

// IsValidDate проверяет формат YYYY-MM-DD.
func IsValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// MonthRange возвращает первый и последний день месяца YYYY-MM.
func MonthRange(month string) (from, to string, err error) {
	start, err := time.Parse(monthLayout, month)
	if err != nil {
		return "", "", fmt.Errorf("некорректный месяц %q, ожидается YYYY-MM", month)
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(time.DateOnly), end.Format(time.DateOnly), nil
}

// DateRange - закрытый интервал дат [From, To] в формате YYYY-MM-DD.
type DateRange struct {
	From string
	To   string
}

// NewDateRange проверяет формат границ и их порядок.
func NewDateRange(from, to string) (DateRange, error) {
	f, err := ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	if t.Before(f) {
		return DateRange{}, fmt.Errorf("дата to (%s) раньше from (%s)", to, from)
	}
	return DateRange{From: from, To: to}, nil
}

// Contains проверяет попадание даты в интервал (формат фиксирован,
// поэтому строкового сравнения достаточно).
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}
