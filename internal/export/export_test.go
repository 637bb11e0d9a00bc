package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kolobok/dbadmin/internal/models"
)

func sampleTable() TableData {
	return TableData{
		Name:  "menu_items",
		Title: "Меню",
		Schema: &models.TableSchema{
			Name: "menu_items",
			Columns: []models.ColumnSpec{
				{Name: "id", Type: models.TypeInteger, Generated: true},
				{Name: "name", Type: models.TypeText},
				{Name: "price", Type: models.TypeDecimal},
			},
		},
		Rows: []*models.RowSnapshot{
			{Values: map[string]any{"id": int64(1), "name": "Борщ", "price": 95.0}},
			{Values: map[string]any{"id": int64(2), "name": "Компот", "price": 30.0}},
		},
	}
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h", sanitizeSheetName(`a\b/c?d*e[f]g:h`))
	assert.Equal(t, "Sheet1", sanitizeSheetName(""))

	long := sanitizeSheetName("Очень длинное название листа для проверки")
	assert.Len(t, []rune(long), 31)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path, []TableData{sampleTable()}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Меню"}, f.GetSheetList())

	header, err := f.GetCellValue("Меню", "B1")
	require.NoError(t, err)
	assert.Equal(t, "name", header)

	cell, err := f.GetCellValue("Меню", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Компот", cell)
}

func TestWriteXLSXSkipsDeletedRows(t *testing.T) {
	table := sampleTable()
	table.Rows[0].State = models.RowDeleted
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, WriteXLSX(path, []TableData{table}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	cell, err := f.GetCellValue("Меню", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Компот", cell)
}

func TestWriteXLSXNothingToExport(t *testing.T) {
	assert.Error(t, WriteXLSX(filepath.Join(t.TempDir(), "out.xlsx"), nil))
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, WriteCSV(path, sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "id,name,price\n")
	assert.Contains(t, content, "1,Борщ,95\n")
}

func TestDefaultFilename(t *testing.T) {
	name := DefaultFilename("dbadmin", "xlsx")
	assert.Regexp(t, `^dbadmin_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}\.xlsx$`, name)
}
