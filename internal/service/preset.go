package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coffee-order/api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Preset validation errors.
var (
	ErrPresetNameRequired  = fmt.Errorf("%w: preset name is required", ErrValidation)
	ErrPresetOptionsEmpty  = fmt.Errorf("%w: preset needs at least one option", ErrValidation)
	ErrPresetOptionInvalid = fmt.Errorf("%w: preset option needs a name and a price >= 0", ErrValidation)
	ErrPresetOptionDup     = fmt.Errorf("%w: preset option names must be unique", ErrValidation)
	ErrDuplicatePresetName = fmt.Errorf("%w: preset name already exists", ErrConflict)
)

// PresetStore defines the DB methods needed to write presets and apply them.
// Satisfied by *database.Queries.
type PresetStore interface {
	CreateOptionPreset(ctx context.Context, arg database.CreateOptionPresetParams) (database.OptionPreset, error)
	UpdateOptionPreset(ctx context.Context, arg database.UpdateOptionPresetParams) (database.OptionPreset, error)
	CreatePresetOption(ctx context.Context, arg database.CreatePresetOptionParams) (database.PresetOption, error)
	DeletePresetOptions(ctx context.Context, presetID int32) error
	GetOptionPreset(ctx context.Context, presetID int32) (database.OptionPreset, error)
	ListPresetOptionsByPresets(ctx context.Context, presetIds []int32) ([]database.PresetOption, error)
	GetMenu(ctx context.Context, menuID int32) (database.Menu, error)
	ListOptionsByMenus(ctx context.Context, menuIds []int32) ([]database.Option, error)
	CreateOption(ctx context.Context, arg database.CreateOptionParams) (database.Option, error)
}

// NewPresetStore creates a PresetStore from a DBTX (pool or tx).
type NewPresetStore func(db database.DBTX) PresetStore

// PresetInput is a preset with its ordered options.
type PresetInput struct {
	Name        string
	Description string
	Options     []PresetOptionInput
}

type PresetOptionInput struct {
	Name  string
	Price int64
}

// PresetWithOptions is a stored preset and its options in sort order.
type PresetWithOptions struct {
	Preset  database.OptionPreset
	Options []database.PresetOption
}

// PresetService writes option presets and copies them onto menus.
type PresetService struct {
	pool     TxBeginner
	newStore NewPresetStore
}

// NewPresetService creates a new PresetService.
func NewPresetService(pool TxBeginner, newStore NewPresetStore) *PresetService {
	return &PresetService{pool: pool, newStore: newStore}
}

func validatePreset(in *PresetInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ErrPresetNameRequired
	}
	if len(in.Options) == 0 {
		return ErrPresetOptionsEmpty
	}
	seen := make(map[string]bool, len(in.Options))
	for i := range in.Options {
		opt := &in.Options[i]
		opt.Name = strings.TrimSpace(opt.Name)
		if opt.Name == "" || opt.Price < 0 {
			return fmt.Errorf("options[%d]: %w", i, ErrPresetOptionInvalid)
		}
		key := strings.ToLower(opt.Name)
		if seen[key] {
			return fmt.Errorf("options[%d]: %w", i, ErrPresetOptionDup)
		}
		seen[key] = true
	}
	return nil
}

// CreatePreset stores a new preset and its options.
func (s *PresetService) CreatePreset(ctx context.Context, in PresetInput) (*PresetWithOptions, error) {
	if err := validatePreset(&in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	preset, err := store.CreateOptionPreset(ctx, database.CreateOptionPresetParams{
		Name:        in.Name,
		Description: textOrNull(in.Description),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePresetName
		}
		return nil, fmt.Errorf("create preset: %w", err)
	}

	opts, err := insertPresetOptions(ctx, store, preset.PresetID, in.Options)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &PresetWithOptions{Preset: preset, Options: opts}, nil
}

// UpdatePreset renames a preset and replaces its option list.
func (s *PresetService) UpdatePreset(ctx context.Context, presetID int32, in PresetInput) (*PresetWithOptions, error) {
	if err := validatePreset(&in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	preset, err := store.UpdateOptionPreset(ctx, database.UpdateOptionPresetParams{
		Name:        in.Name,
		Description: textOrNull(in.Description),
		PresetID:    presetID,
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, &NotFoundError{Entity: "preset", ID: presetID}
		case isUniqueViolation(err):
			return nil, ErrDuplicatePresetName
		}
		return nil, fmt.Errorf("update preset: %w", err)
	}

	if err := store.DeletePresetOptions(ctx, presetID); err != nil {
		return nil, fmt.Errorf("clear preset options: %w", err)
	}
	opts, err := insertPresetOptions(ctx, store, presetID, in.Options)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &PresetWithOptions{Preset: preset, Options: opts}, nil
}

// ApplyPreset copies a preset's options onto a menu. Options whose name the
// menu already has are skipped. It returns the options that were created.
func (s *PresetService) ApplyPreset(ctx context.Context, menuID, presetID int32) ([]database.Option, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetMenu(ctx, menuID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "menu", ID: menuID}
		}
		return nil, fmt.Errorf("get menu: %w", err)
	}
	if _, err := store.GetOptionPreset(ctx, presetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "preset", ID: presetID}
		}
		return nil, fmt.Errorf("get preset: %w", err)
	}

	presetOpts, err := store.ListPresetOptionsByPresets(ctx, []int32{presetID})
	if err != nil {
		return nil, fmt.Errorf("list preset options: %w", err)
	}
	existing, err := store.ListOptionsByMenus(ctx, []int32{menuID})
	if err != nil {
		return nil, fmt.Errorf("list menu options: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, o := range existing {
		have[strings.ToLower(o.Name)] = true
	}

	created := make([]database.Option, 0, len(presetOpts))
	for _, po := range presetOpts {
		if have[strings.ToLower(po.Name)] {
			continue
		}
		opt, err := store.CreateOption(ctx, database.CreateOptionParams{
			MenuID: menuID,
			Name:   po.Name,
			Price:  po.Price,
		})
		if err != nil {
			return nil, fmt.Errorf("create option %q: %w", po.Name, err)
		}
		created = append(created, opt)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}

func insertPresetOptions(ctx context.Context, store PresetStore, presetID int32, in []PresetOptionInput) ([]database.PresetOption, error) {
	opts := make([]database.PresetOption, 0, len(in))
	for i, o := range in {
		po, err := store.CreatePresetOption(ctx, database.CreatePresetOptionParams{
			PresetID:  presetID,
			Name:      o.Name,
			Price:     o.Price,
			SortOrder: int32(i),
		})
		if err != nil {
			return nil, fmt.Errorf("create preset option: %w", err)
		}
		opts = append(opts, po)
	}
	return opts, nil
}

func textOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
