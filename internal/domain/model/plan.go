package model

// PlanLine - одна выбранная позиция пользователя на дату.
type PlanLine struct {
	Date   string
	ItemID string
}

// PlanDay - заказ пользователя на дату с раскрытыми позициями каталога.
type PlanDay struct {
	Date  string
	Items []MenuItem
}

// KitchenRow - плоская строка выборки для кухонной сводки:
// строка заказа + название блюда + данные профиля владельца.
type KitchenRow struct {
	Date     string
	ItemID   string
	ItemName string
	UserID   string
	// PersonName - имя из профиля, nil если профиля нет или имя не задано
	PersonName *string
	// Session - lunch_session из профиля, nil если не выбрана
	Session *string
}

// PlannedItem - позиция каталога, выбранная пользователем на дату.
type PlannedItem struct {
	Date string
	Item MenuItem
}
