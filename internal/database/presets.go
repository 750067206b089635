package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOptionPreset = `
INSERT INTO option_presets (name, description)
VALUES ($1, $2)
RETURNING preset_id, name, description, created_at, updated_at
`

type CreateOptionPresetParams struct {
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateOptionPreset(ctx context.Context, arg CreateOptionPresetParams) (OptionPreset, error) {
	row := q.db.QueryRow(ctx, createOptionPreset, arg.Name, arg.Description)
	var i OptionPreset
	err := row.Scan(
		&i.PresetID,
		&i.Name,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPresetOption = `
INSERT INTO preset_options (preset_id, name, price, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING id, preset_id, name, price, sort_order
`

type CreatePresetOptionParams struct {
	PresetID  int32
	Name      string
	Price     int64
	SortOrder int32
}

func (q *Queries) CreatePresetOption(ctx context.Context, arg CreatePresetOptionParams) (PresetOption, error) {
	row := q.db.QueryRow(ctx, createPresetOption,
		arg.PresetID,
		arg.Name,
		arg.Price,
		arg.SortOrder,
	)
	var i PresetOption
	err := row.Scan(
		&i.ID,
		&i.PresetID,
		&i.Name,
		&i.Price,
		&i.SortOrder,
	)
	return i, err
}

const deleteOptionPreset = `
DELETE FROM option_presets
WHERE preset_id = $1
RETURNING preset_id
`

func (q *Queries) DeleteOptionPreset(ctx context.Context, presetID int32) (int32, error) {
	row := q.db.QueryRow(ctx, deleteOptionPreset, presetID)
	var preset_id int32
	err := row.Scan(&preset_id)
	return preset_id, err
}

const deletePresetOptions = `
DELETE FROM preset_options
WHERE preset_id = $1
`

func (q *Queries) DeletePresetOptions(ctx context.Context, presetID int32) error {
	_, err := q.db.Exec(ctx, deletePresetOptions, presetID)
	return err
}

const getOptionPreset = `
SELECT preset_id, name, description, created_at, updated_at
FROM option_presets
WHERE preset_id = $1
`

func (q *Queries) GetOptionPreset(ctx context.Context, presetID int32) (OptionPreset, error) {
	row := q.db.QueryRow(ctx, getOptionPreset, presetID)
	var i OptionPreset
	err := row.Scan(
		&i.PresetID,
		&i.Name,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listOptionPresets = `
SELECT preset_id, name, description, created_at, updated_at
FROM option_presets
ORDER BY preset_id
`

func (q *Queries) ListOptionPresets(ctx context.Context) ([]OptionPreset, error) {
	rows, err := q.db.Query(ctx, listOptionPresets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OptionPreset{}
	for rows.Next() {
		var i OptionPreset
		if err := rows.Scan(
			&i.PresetID,
			&i.Name,
			&i.Description,
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

const listPresetOptionsByPresets = `
SELECT id, preset_id, name, price, sort_order
FROM preset_options
WHERE preset_id = ANY($1::int[])
ORDER BY preset_id, sort_order, id
`

func (q *Queries) ListPresetOptionsByPresets(ctx context.Context, presetIds []int32) ([]PresetOption, error) {
	rows, err := q.db.Query(ctx, listPresetOptionsByPresets, presetIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PresetOption{}
	for rows.Next() {
		var i PresetOption
		if err := rows.Scan(
			&i.ID,
			&i.PresetID,
			&i.Name,
			&i.Price,
			&i.SortOrder,
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

const updateOptionPreset = `
UPDATE option_presets
SET name = $1, description = $2, updated_at = NOW()
WHERE preset_id = $3
RETURNING preset_id, name, description, created_at, updated_at
`

type UpdateOptionPresetParams struct {
	Name        string
	Description pgtype.Text
	PresetID    int32
}

func (q *Queries) UpdateOptionPreset(ctx context.Context, arg UpdateOptionPresetParams) (OptionPreset, error) {
	row := q.db.QueryRow(ctx, updateOptionPreset, arg.Name, arg.Description, arg.PresetID)
	var i OptionPreset
	err := row.Scan(
		&i.PresetID,
		&i.Name,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
