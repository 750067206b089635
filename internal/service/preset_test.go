package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coffee-order/api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memPresetStore implements PresetStore over in-memory tables.
type memPresetStore struct {
	menus         map[int32]database.Menu
	presets       map[int32]database.OptionPreset
	presetOptions []database.PresetOption
	options       []database.Option

	nextID   int32
	writes   []string
	optErr   error // returned by CreateOption
	nameUsed map[string]bool
}

func newMemPresetStore() *memPresetStore {
	return &memPresetStore{
		menus: map[int32]database.Menu{
			1: {MenuID: 1, Name: "Latte"},
		},
		presets: map[int32]database.OptionPreset{
			5: {PresetID: 5, Name: "Milk choices"},
		},
		presetOptions: []database.PresetOption{
			{ID: 1, PresetID: 5, Name: "Oat milk", Price: 700, SortOrder: 0},
			{ID: 2, PresetID: 5, Name: "Soy milk", Price: 500, SortOrder: 1},
		},
		options: []database.Option{
			{OptionID: 10, MenuID: 1, Name: "OAT MILK", Price: 600},
		},
		nextID:   100,
		nameUsed: map[string]bool{"milk choices": true},
	}
}

func (m *memPresetStore) CreateOptionPreset(_ context.Context, arg database.CreateOptionPresetParams) (database.OptionPreset, error) {
	if m.nameUsed[strings.ToLower(arg.Name)] {
		return database.OptionPreset{}, &pgconn.PgError{Code: pgUniqueViolation}
	}
	m.nextID++
	p := database.OptionPreset{PresetID: m.nextID, Name: arg.Name, Description: arg.Description}
	m.presets[p.PresetID] = p
	m.nameUsed[strings.ToLower(arg.Name)] = true
	m.writes = append(m.writes, "create preset")
	return p, nil
}

func (m *memPresetStore) UpdateOptionPreset(_ context.Context, arg database.UpdateOptionPresetParams) (database.OptionPreset, error) {
	p, ok := m.presets[arg.PresetID]
	if !ok {
		return database.OptionPreset{}, pgx.ErrNoRows
	}
	p.Name, p.Description = arg.Name, arg.Description
	m.presets[p.PresetID] = p
	m.writes = append(m.writes, "update preset")
	return p, nil
}

func (m *memPresetStore) CreatePresetOption(_ context.Context, arg database.CreatePresetOptionParams) (database.PresetOption, error) {
	m.nextID++
	po := database.PresetOption{ID: m.nextID, PresetID: arg.PresetID, Name: arg.Name, Price: arg.Price, SortOrder: arg.SortOrder}
	m.presetOptions = append(m.presetOptions, po)
	m.writes = append(m.writes, "create preset option "+arg.Name)
	return po, nil
}

func (m *memPresetStore) DeletePresetOptions(_ context.Context, presetID int32) error {
	kept := m.presetOptions[:0]
	for _, po := range m.presetOptions {
		if po.PresetID != presetID {
			kept = append(kept, po)
		}
	}
	m.presetOptions = kept
	m.writes = append(m.writes, "delete preset options")
	return nil
}

func (m *memPresetStore) GetOptionPreset(_ context.Context, presetID int32) (database.OptionPreset, error) {
	p, ok := m.presets[presetID]
	if !ok {
		return database.OptionPreset{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memPresetStore) ListPresetOptionsByPresets(_ context.Context, ids []int32) ([]database.PresetOption, error) {
	var out []database.PresetOption
	for _, po := range m.presetOptions {
		for _, id := range ids {
			if po.PresetID == id {
				out = append(out, po)
			}
		}
	}
	return out, nil
}

func (m *memPresetStore) GetMenu(_ context.Context, menuID int32) (database.Menu, error) {
	menu, ok := m.menus[menuID]
	if !ok {
		return database.Menu{}, pgx.ErrNoRows
	}
	return menu, nil
}

func (m *memPresetStore) ListOptionsByMenus(_ context.Context, ids []int32) ([]database.Option, error) {
	var out []database.Option
	for _, o := range m.options {
		for _, id := range ids {
			if o.MenuID == id {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *memPresetStore) CreateOption(_ context.Context, arg database.CreateOptionParams) (database.Option, error) {
	if m.optErr != nil {
		return database.Option{}, m.optErr
	}
	m.nextID++
	o := database.Option{OptionID: m.nextID, MenuID: arg.MenuID, Name: arg.Name, Price: arg.Price}
	m.options = append(m.options, o)
	m.writes = append(m.writes, "create option "+arg.Name)
	return o, nil
}

func newTestPresetService(store *memPresetStore) (*PresetService, *mockTx) {
	tx := &mockTx{}
	svc := NewPresetService(&mockTxBeginner{tx: tx}, func(database.DBTX) PresetStore { return store })
	return svc, tx
}

func TestCreatePreset(t *testing.T) {
	store := newMemPresetStore()
	svc, tx := newTestPresetService(store)

	res, err := svc.CreatePreset(context.Background(), PresetInput{
		Name:        "  Syrups ",
		Description: "Sweeteners",
		Options:     []PresetOptionInput{{Name: "Vanilla", Price: 300}, {Name: " Hazelnut ", Price: 300}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if res.Preset.Name != "Syrups" || !res.Preset.Description.Valid {
		t.Errorf("unexpected preset: %+v", res.Preset)
	}
	if len(res.Options) != 2 || res.Options[1].Name != "Hazelnut" || res.Options[1].SortOrder != 1 {
		t.Errorf("unexpected options: %+v", res.Options)
	}
}

func TestCreatePreset_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   PresetInput
		want error
	}{
		{"blank name", PresetInput{Name: " ", Options: []PresetOptionInput{{Name: "A"}}}, ErrPresetNameRequired},
		{"no options", PresetInput{Name: "P"}, ErrPresetOptionsEmpty},
		{"blank option", PresetInput{Name: "P", Options: []PresetOptionInput{{Name: ""}}}, ErrPresetOptionInvalid},
		{"negative price", PresetInput{Name: "P", Options: []PresetOptionInput{{Name: "A", Price: -1}}}, ErrPresetOptionInvalid},
		{"duplicate option", PresetInput{Name: "P", Options: []PresetOptionInput{{Name: "A"}, {Name: "a"}}}, ErrPresetOptionDup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemPresetStore()
			svc, _ := newTestPresetService(store)

			_, err := svc.CreatePreset(context.Background(), tt.in)
			if !errors.Is(err, tt.want) || !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if len(store.writes) != 0 {
				t.Errorf("writes on invalid input: %v", store.writes)
			}
		})
	}
}

func TestCreatePreset_DuplicateName(t *testing.T) {
	svc, tx := newTestPresetService(newMemPresetStore())

	_, err := svc.CreatePreset(context.Background(), PresetInput{
		Name:    "Milk choices",
		Options: []PresetOptionInput{{Name: "Oat milk", Price: 700}},
	})
	if !errors.Is(err, ErrDuplicatePresetName) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate name conflict, got %v", err)
	}
	if tx.committed {
		t.Error("must not commit")
	}
}

func TestUpdatePreset_ReplacesOptions(t *testing.T) {
	store := newMemPresetStore()
	svc, tx := newTestPresetService(store)

	res, err := svc.UpdatePreset(context.Background(), 5, PresetInput{
		Name:    "Milk",
		Options: []PresetOptionInput{{Name: "Almond milk", Price: 800}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if res.Preset.Name != "Milk" || len(res.Options) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	stored, _ := store.ListPresetOptionsByPresets(context.Background(), []int32{5})
	if len(stored) != 1 || stored[0].Name != "Almond milk" {
		t.Errorf("options not replaced: %+v", stored)
	}
}

func TestUpdatePreset_NotFound(t *testing.T) {
	svc, _ := newTestPresetService(newMemPresetStore())

	_, err := svc.UpdatePreset(context.Background(), 42, PresetInput{
		Name:    "X",
		Options: []PresetOptionInput{{Name: "A"}},
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "preset" || nf.ID != 42 {
		t.Fatalf("expected preset NotFoundError, got %v", err)
	}
}

func TestApplyPreset_SkipsExistingNames(t *testing.T) {
	store := newMemPresetStore()
	svc, tx := newTestPresetService(store)

	created, err := svc.ApplyPreset(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if len(created) != 1 || created[0].Name != "Soy milk" || created[0].MenuID != 1 || created[0].Price != 500 {
		t.Errorf("unexpected created options: %+v", created)
	}
}

func TestApplyPreset_NotFound(t *testing.T) {
	tests := []struct {
		name     string
		menuID   int32
		presetID int32
		entity   string
	}{
		{"menu", 9, 5, "menu"},
		{"preset", 1, 9, "preset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemPresetStore()
			svc, tx := newTestPresetService(store)

			_, err := svc.ApplyPreset(context.Background(), tt.menuID, tt.presetID)
			var nf *NotFoundError
			if !errors.As(err, &nf) || nf.Entity != tt.entity {
				t.Fatalf("expected %s NotFoundError, got %v", tt.entity, err)
			}
			if tx.committed || len(store.writes) != 0 {
				t.Errorf("no writes expected: committed=%v writes=%v", tx.committed, store.writes)
			}
		})
	}
}

func TestApplyPreset_CreateFailureNeverCommits(t *testing.T) {
	store := newMemPresetStore()
	store.optErr = errors.New("disk full")
	svc, tx := newTestPresetService(store)

	if _, err := svc.ApplyPreset(context.Background(), 1, 5); err == nil {
		t.Fatal("expected error")
	}
	if tx.committed {
		t.Error("must not commit")
	}
	if !tx.rolledBack {
		t.Error("expected rollback")
	}
}
