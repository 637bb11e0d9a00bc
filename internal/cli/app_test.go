package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kolobok/dbadmin/internal/display"
	"github.com/kolobok/dbadmin/internal/mapper"
	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/internal/service"
)

type memStore struct {
	schema       *models.TableSchema
	rows         []*models.RowSnapshot
	execAffected int64
}

func (m *memStore) Dialect() mapper.Dialect { return mapper.DialectPostgres }

func (m *memStore) ListTables(ctx context.Context) ([]string, error) {
	return []string{m.schema.Name}, nil
}

func (m *memStore) LoadTable(ctx context.Context, name string) (*models.TableSchema, []*models.RowSnapshot, error) {
	rows := make([]*models.RowSnapshot, len(m.rows))
	for i, r := range m.rows {
		rows[i] = r.Clone()
	}
	return m.schema, rows, nil
}

func (m *memStore) Insert(ctx context.Context, stmt mapper.Statement, keyColumn string) (any, error) {
	return int64(99), nil
}

func (m *memStore) Exec(ctx context.Context, stmt mapper.Statement) (int64, error) {
	return m.execAffected, nil
}

func (m *memStore) NextKeyPreview(ctx context.Context, table, column string) (int64, error) {
	return 99, nil
}

func (m *memStore) Close() {}

type nopAudit struct{}

func (nopAudit) Emit(kind models.EventKind, table, detail string) {}

func runScript(t *testing.T, store *memStore, script string) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := service.NewEngine(store, nopAudit{}, logger)
	catalog := &display.Catalog{Tables: map[string]display.TableEntry{
		"menu_items": {Display: "Меню", Fields: map[string]display.FieldEntry{
			"name": {Label: "Название"},
		}},
	}}

	var out bytes.Buffer
	reader := NewLineReader(strings.NewReader(script), &out)
	app := NewApp(engine, catalog, reader, &out, logger)

	require.NoError(t, app.Run(context.Background()))
	return out.String()
}

func newMemStore() *memStore {
	return &memStore{
		schema: &models.TableSchema{
			Name: "menu_items",
			Columns: []models.ColumnSpec{
				{Name: "id", Type: models.TypeInteger, Generated: true},
				{Name: "name", Type: models.TypeText},
				{Name: "price", Type: models.TypeDecimal},
			},
		},
		rows: []*models.RowSnapshot{
			{Values: map[string]any{"id": int64(1), "name": "Борщ", "price": 95.0}},
		},
		execAffected: 1,
	}
}

func TestAppListsTablesWithDisplayNames(t *testing.T) {
	out := runScript(t, newMemStore(), "tables\nquit\n")
	assert.Contains(t, out, "menu_items (Меню)")
}

func TestAppShowUsesFieldLabels(t *testing.T) {
	out := runScript(t, newMemStore(), "open menu_items\nquit\n")
	assert.Contains(t, out, "Название")
	assert.Contains(t, out, "Борщ")
}

func TestAppStageAndSave(t *testing.T) {
	out := runScript(t, newMemStore(), strings.Join([]string{
		"open menu_items",
		"set 0 price 110",
		"save",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "Staged.")
	assert.Contains(t, out, "Saved 1 row(s).")
}

func TestAppSaveWithNothingPending(t *testing.T) {
	out := runScript(t, newMemStore(), "open menu_items\nsave\nquit\n")
	assert.Contains(t, out, "Nothing to save.")
}

func TestAppDeleteNeedsConfirmation(t *testing.T) {
	out := runScript(t, newMemStore(), strings.Join([]string{
		"open menu_items",
		"del 0",
		"n",
		"del 0",
		"y",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "Row deleted.")
}

func TestAppDeleteVanishedRow(t *testing.T) {
	store := newMemStore()
	store.execAffected = 0
	out := runScript(t, store, "open menu_items\ndel 0\ny\nquit\n")

	assert.Contains(t, out, `Run "refresh" to reload the table.`)
}

func TestAppAddValidationShowsLabels(t *testing.T) {
	// Both prompted values left blank
	out := runScript(t, newMemStore(), "open menu_items\nadd\n\n\nquit\n")
	assert.Contains(t, out, "Fill in the required fields: Название, price")
}

func TestAppExportCSVByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	out := runScript(t, newMemStore(), "open menu_items\nexport "+path+"\nquit\n")

	assert.Contains(t, out, "Exported menu_items to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "id,name,price\n")
	assert.Contains(t, content, "1,Борщ,95\n")
}

func TestAppExportXLSXByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	out := runScript(t, newMemStore(), "open menu_items\nexport "+path+"\nquit\n")

	assert.Contains(t, out, "Exported 1 table(s) to "+path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Меню"}, f.GetSheetList())
}

func TestAppExportAllRejectsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	out := runScript(t, newMemStore(), "exportall "+path+"\nquit\n")

	assert.Contains(t, out, "CSV holds a single table")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file may be written for a rejected export")
}

func TestAppCommandsRequireOpenTable(t *testing.T) {
	out := runScript(t, newMemStore(), "show\nquit\n")
	assert.Contains(t, out, "no table open")
}

func TestAppUnknownCommand(t *testing.T) {
	out := runScript(t, newMemStore(), "frobnicate\nquit\n")
	assert.Contains(t, out, "unknown command")
}
