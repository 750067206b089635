package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createMenu = `
INSERT INTO menus (name, description, price, stock, image_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING menu_id, name, description, price, stock, image_url, created_at, updated_at
`

type CreateMenuParams struct {
	Name        string
	Description pgtype.Text
	Price       int64
	Stock       int32
	ImageUrl    pgtype.Text
}

func (q *Queries) CreateMenu(ctx context.Context, arg CreateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, createMenu,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Stock,
		arg.ImageUrl,
	)
	var i Menu
	err := row.Scan(
		&i.MenuID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Stock,
		&i.ImageUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const decrementMenuStock = `
UPDATE menus
SET stock = stock - $1::int, updated_at = NOW()
WHERE menu_id = $2 AND stock >= $1::int
RETURNING stock
`

type DecrementMenuStockParams struct {
	Quantity int32
	MenuID   int32
}

// DecrementMenuStock returns pgx.ErrNoRows when stock would go negative.
func (q *Queries) DecrementMenuStock(ctx context.Context, arg DecrementMenuStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, decrementMenuStock, arg.Quantity, arg.MenuID)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const deleteMenu = `
DELETE FROM menus
WHERE menu_id = $1
RETURNING menu_id
`

func (q *Queries) DeleteMenu(ctx context.Context, menuID int32) (int32, error) {
	row := q.db.QueryRow(ctx, deleteMenu, menuID)
	var menu_id int32
	err := row.Scan(&menu_id)
	return menu_id, err
}

const getMenu = `
SELECT menu_id, name, description, price, stock, image_url, created_at, updated_at
FROM menus
WHERE menu_id = $1
`

func (q *Queries) GetMenu(ctx context.Context, menuID int32) (Menu, error) {
	row := q.db.QueryRow(ctx, getMenu, menuID)
	var i Menu
	err := row.Scan(
		&i.MenuID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Stock,
		&i.ImageUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const incrementMenuStock = `
UPDATE menus
SET stock = stock + $1::int, updated_at = NOW()
WHERE menu_id = $2
RETURNING stock
`

type IncrementMenuStockParams struct {
	Quantity int32
	MenuID   int32
}

func (q *Queries) IncrementMenuStock(ctx context.Context, arg IncrementMenuStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementMenuStock, arg.Quantity, arg.MenuID)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const listInventory = `
SELECT menu_id, name, stock
FROM menus
ORDER BY menu_id
`

type ListInventoryRow struct {
	MenuID int32
	Name   string
	Stock  int32
}

func (q *Queries) ListInventory(ctx context.Context) ([]ListInventoryRow, error) {
	rows, err := q.db.Query(ctx, listInventory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListInventoryRow{}
	for rows.Next() {
		var i ListInventoryRow
		if err := rows.Scan(&i.MenuID, &i.Name, &i.Stock); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listMenus = `
SELECT menu_id, name, description, price, stock, image_url, created_at, updated_at
FROM menus
ORDER BY menu_id
`

func (q *Queries) ListMenus(ctx context.Context) ([]Menu, error) {
	rows, err := q.db.Query(ctx, listMenus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Menu{}
	for rows.Next() {
		var i Menu
		if err := rows.Scan(
			&i.MenuID,
			&i.Name,
			&i.Description,
			&i.Price,
			&i.Stock,
			&i.ImageUrl,
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

const lockMenusForOrder = `
SELECT menu_id, name, price, stock
FROM menus
WHERE menu_id = ANY($1::int[])
ORDER BY menu_id
FOR UPDATE
`

type LockMenusForOrderRow struct {
	MenuID int32
	Name   string
	Price  int64
	Stock  int32
}

// LockMenusForOrder reads and exclusively locks the given menu rows until the
// surrounding transaction ends. Rows are locked in ascending menu_id order so
// concurrent placements touching overlapping menus cannot deadlock.
func (q *Queries) LockMenusForOrder(ctx context.Context, menuIds []int32) ([]LockMenusForOrderRow, error) {
	rows, err := q.db.Query(ctx, lockMenusForOrder, menuIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LockMenusForOrderRow{}
	for rows.Next() {
		var i LockMenusForOrderRow
		if err := rows.Scan(
			&i.MenuID,
			&i.Name,
			&i.Price,
			&i.Stock,
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

const setLockTimeout = `
SELECT set_config('lock_timeout', $1::text, true)
`

// SetLockTimeout sets lock_timeout for the current transaction only.
func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	_, err := q.db.Exec(ctx, setLockTimeout, timeout)
	return err
}

const setMenuStock = `
UPDATE menus
SET stock = $1, updated_at = NOW()
WHERE menu_id = $2
RETURNING menu_id, name, stock
`

type SetMenuStockParams struct {
	Stock  int32
	MenuID int32
}

type SetMenuStockRow struct {
	MenuID int32
	Name   string
	Stock  int32
}

func (q *Queries) SetMenuStock(ctx context.Context, arg SetMenuStockParams) (SetMenuStockRow, error) {
	row := q.db.QueryRow(ctx, setMenuStock, arg.Stock, arg.MenuID)
	var i SetMenuStockRow
	err := row.Scan(&i.MenuID, &i.Name, &i.Stock)
	return i, err
}

const updateMenu = `
UPDATE menus
SET name = $1, description = $2, price = $3, image_url = $4, updated_at = NOW()
WHERE menu_id = $5
RETURNING menu_id, name, description, price, stock, image_url, created_at, updated_at
`

type UpdateMenuParams struct {
	Name        string
	Description pgtype.Text
	Price       int64
	ImageUrl    pgtype.Text
	MenuID      int32
}

func (q *Queries) UpdateMenu(ctx context.Context, arg UpdateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, updateMenu,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ImageUrl,
		arg.MenuID,
	)
	var i Menu
	err := row.Scan(
		&i.MenuID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Stock,
		&i.ImageUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
