package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Menu struct {
	MenuID      int32
	Name        string
	Description pgtype.Text
	Price       int64
	Stock       int32
	ImageUrl    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Option struct {
	OptionID  int32
	MenuID    int32
	Name      string
	Price     int64
	CreatedAt time.Time
}

type OptionPreset struct {
	PresetID    int32
	Name        string
	Description pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	OrderID     int32
	TotalAmount int64
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ItemID   int32
	OrderID  int32
	MenuID   int32
	Quantity int32
	Price    int64
}

type OrderItemOption struct {
	ID          int32
	ItemID      int32
	OptionID    pgtype.Int4
	OptionName  string
	OptionPrice int64
}

type PresetOption struct {
	ID        int32
	PresetID  int32
	Name      string
	Price     int64
	SortOrder int32
}
