package database

import (
	"context"
)

const createOption = `
INSERT INTO options (menu_id, name, price)
VALUES ($1, $2, $3)
RETURNING option_id, menu_id, name, price, created_at
`

type CreateOptionParams struct {
	MenuID int32
	Name   string
	Price  int64
}

func (q *Queries) CreateOption(ctx context.Context, arg CreateOptionParams) (Option, error) {
	row := q.db.QueryRow(ctx, createOption, arg.MenuID, arg.Name, arg.Price)
	var i Option
	err := row.Scan(
		&i.OptionID,
		&i.MenuID,
		&i.Name,
		&i.Price,
		&i.CreatedAt,
	)
	return i, err
}

const deleteOption = `
DELETE FROM options
WHERE option_id = $1
RETURNING option_id
`

func (q *Queries) DeleteOption(ctx context.Context, optionID int32) (int32, error) {
	row := q.db.QueryRow(ctx, deleteOption, optionID)
	var option_id int32
	err := row.Scan(&option_id)
	return option_id, err
}

const getOptionsForOrder = `
SELECT option_id, menu_id, name, price, created_at
FROM options
WHERE option_id = ANY($1::int[])
ORDER BY option_id
FOR SHARE
`

// GetOptionsForOrder reads the given options and share-locks them so they
// cannot be deleted before the order's snapshots reference them.
func (q *Queries) GetOptionsForOrder(ctx context.Context, optionIds []int32) ([]Option, error) {
	return q.queryOptions(ctx, getOptionsForOrder, optionIds)
}

const listOptions = `
SELECT option_id, menu_id, name, price, created_at
FROM options
ORDER BY menu_id, option_id
`

func (q *Queries) ListOptions(ctx context.Context) ([]Option, error) {
	return q.queryOptions(ctx, listOptions)
}

const listOptionsByMenus = `
SELECT option_id, menu_id, name, price, created_at
FROM options
WHERE menu_id = ANY($1::int[])
ORDER BY menu_id, option_id
`

func (q *Queries) ListOptionsByMenus(ctx context.Context, menuIds []int32) ([]Option, error) {
	return q.queryOptions(ctx, listOptionsByMenus, menuIds)
}

func (q *Queries) queryOptions(ctx context.Context, sql string, args ...interface{}) ([]Option, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Option{}
	for rows.Next() {
		var i Option
		if err := rows.Scan(
			&i.OptionID,
			&i.MenuID,
			&i.Name,
			&i.Price,
			&i.CreatedAt,
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

const updateOption = `
UPDATE options
SET name = $1, price = $2
WHERE option_id = $3
RETURNING option_id, menu_id, name, price, created_at
`

type UpdateOptionParams struct {
	Name     string
	Price    int64
	OptionID int32
}

func (q *Queries) UpdateOption(ctx context.Context, arg UpdateOptionParams) (Option, error) {
	row := q.db.QueryRow(ctx, updateOption, arg.Name, arg.Price, arg.OptionID)
	var i Option
	err := row.Scan(
		&i.OptionID,
		&i.MenuID,
		&i.Name,
		&i.Price,
		&i.CreatedAt,
	)
	return i, err
}
