package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (total_amount, status)
VALUES ($1, $2)
RETURNING order_id, total_amount, status, created_at, updated_at
`

type CreateOrderParams struct {
	TotalAmount int64
	Status      OrderStatus
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.TotalAmount, arg.Status)
	var i Order
	err := row.Scan(
		&i.OrderID,
		&i.TotalAmount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_id, quantity, price)
VALUES ($1, $2, $3, $4)
RETURNING item_id, order_id, menu_id, quantity, price
`

type CreateOrderItemParams struct {
	OrderID  int32
	MenuID   int32
	Quantity int32
	Price    int64
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuID,
		arg.Quantity,
		arg.Price,
	)
	var i OrderItem
	err := row.Scan(
		&i.ItemID,
		&i.OrderID,
		&i.MenuID,
		&i.Quantity,
		&i.Price,
	)
	return i, err
}

const createOrderItemOption = `
INSERT INTO order_item_options (item_id, option_id, option_name, option_price)
VALUES ($1, $2, $3, $4)
RETURNING id, item_id, option_id, option_name, option_price
`

type CreateOrderItemOptionParams struct {
	ItemID      int32
	OptionID    pgtype.Int4
	OptionName  string
	OptionPrice int64
}

func (q *Queries) CreateOrderItemOption(ctx context.Context, arg CreateOrderItemOptionParams) (OrderItemOption, error) {
	row := q.db.QueryRow(ctx, createOrderItemOption,
		arg.ItemID,
		arg.OptionID,
		arg.OptionName,
		arg.OptionPrice,
	)
	var i OrderItemOption
	err := row.Scan(
		&i.ID,
		&i.ItemID,
		&i.OptionID,
		&i.OptionName,
		&i.OptionPrice,
	)
	return i, err
}

const getOrder = `
SELECT order_id, total_amount, status, created_at, updated_at
FROM orders
WHERE order_id = $1
`

func (q *Queries) GetOrder(ctx context.Context, orderID int32) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, orderID)
	var i Order
	err := row.Scan(
		&i.OrderID,
		&i.TotalAmount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderForUpdate = `
SELECT order_id, total_amount, status, created_at, updated_at
FROM orders
WHERE order_id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, orderID int32) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, orderID)
	var i Order
	err := row.Scan(
		&i.OrderID,
		&i.TotalAmount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOrderItemOptionsByOrder = `
SELECT oio.id, oio.item_id, oio.option_id, oio.option_name, oio.option_price
FROM order_item_options oio
JOIN order_items oi ON oi.item_id = oio.item_id
WHERE oi.order_id = $1
ORDER BY oio.item_id, oio.id
`

func (q *Queries) ListOrderItemOptionsByOrder(ctx context.Context, orderID int32) ([]OrderItemOption, error) {
	rows, err := q.db.Query(ctx, listOrderItemOptionsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemOption{}
	for rows.Next() {
		var i OrderItemOption
		if err := rows.Scan(
			&i.ID,
			&i.ItemID,
			&i.OptionID,
			&i.OptionName,
			&i.OptionPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `
SELECT oi.item_id, oi.order_id, oi.menu_id, oi.quantity, oi.price, m.name AS menu_name
FROM order_items oi
JOIN menus m ON m.menu_id = oi.menu_id
WHERE oi.order_id = $1
ORDER BY oi.item_id
`

type ListOrderItemsByOrderRow struct {
	ItemID   int32
	OrderID  int32
	MenuID   int32
	Quantity int32
	Price    int64
	MenuName string
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int32) ([]ListOrderItemsByOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderItemsByOrderRow{}
	for rows.Next() {
		var i ListOrderItemsByOrderRow
		if err := rows.Scan(
			&i.ItemID,
			&i.OrderID,
			&i.MenuID,
			&i.Quantity,
			&i.Price,
			&i.MenuName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrders = `
SELECT oi.order_id, oi.quantity, m.name AS menu_name
FROM order_items oi
JOIN menus m ON m.menu_id = oi.menu_id
WHERE oi.order_id = ANY($1::int[])
ORDER BY oi.order_id, oi.item_id
`

type ListOrderItemsByOrdersRow struct {
	OrderID  int32
	Quantity int32
	MenuName string
}

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIds []int32) ([]ListOrderItemsByOrdersRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderItemsByOrdersRow{}
	for rows.Next() {
		var i ListOrderItemsByOrdersRow
		if err := rows.Scan(&i.OrderID, &i.Quantity, &i.MenuName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrders = `
SELECT order_id, total_amount, status, created_at, updated_at
FROM orders
WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
ORDER BY created_at DESC, order_id DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	Statuses []string
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	statuses := arg.Statuses
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := q.db.Query(ctx, listOrders, statuses, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var i Order
		if err := rows.Scan(
			&i.OrderID,
			&i.TotalAmount,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `
UPDATE orders
SET status = $1, updated_at = NOW()
WHERE order_id = $2
RETURNING order_id, total_amount, status, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	Status  OrderStatus
	OrderID int32
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.Status, arg.OrderID)
	var i Order
	err := row.Scan(
		&i.OrderID,
		&i.TotalAmount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getOrderStatistics = `
SELECT
    COUNT(*)                                      AS total,
    COUNT(*) FILTER (WHERE status = 'pending')    AS pending,
    COUNT(*) FILTER (WHERE status = 'received')   AS received,
    COUNT(*) FILTER (WHERE status = 'inProgress') AS in_progress,
    COUNT(*) FILTER (WHERE status = 'completed')  AS completed,
    COUNT(*) FILTER (WHERE status = 'cancelled')  AS cancelled,
    MAX(created_at)                               AS last_order_at
FROM orders
`

type GetOrderStatisticsRow struct {
	Total       int64
	Pending     int64
	Received    int64
	InProgress  int64
	Completed   int64
	Cancelled   int64
	LastOrderAt pgtype.Timestamptz
}

func (q *Queries) GetOrderStatistics(ctx context.Context) (GetOrderStatisticsRow, error) {
	row := q.db.QueryRow(ctx, getOrderStatistics)
	var i GetOrderStatisticsRow
	err := row.Scan(
		&i.Total,
		&i.Pending,
		&i.Received,
		&i.InProgress,
		&i.Completed,
		&i.Cancelled,
		&i.LastOrderAt,
	)
	return i, err
}
