package catalog

import (
	"path/filepath"
	"testing"

	"github.com/agentic-research/twbgraph/internal/workbook"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const book = `<workbook>
  <preferences>
    <color-palette name='Brand' />
  </preferences>
  <datasources>
    <datasource caption='Orders' name='federated.orders'>
      <column datatype='string' name='[Region]' role='dimension' type='nominal' />
      <column caption='Ratio' datatype='real' name='[Calc]' role='measure' type='quantitative'>
        <calculation class='tableau' formula='1' />
      </column>
      <style>
        <style-rule element='mark'>
          <encoding attr='color' field='[none:Region:nk]' palette='Brand' />
        </style-rule>
      </style>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Map'>
      <table><view>
        <datasource-dependencies datasource='federated.orders'>
          <column name='[Region]' />
        </datasource-dependencies>
      </view></table>
    </worksheet>
  </worksheets>
  <dashboards>
    <dashboard name='Sales' type='default'>
      <zones><zone name='Map' /></zones>
    </dashboard>
    <dashboard name='Blank' type='default' />
  </dashboards>
</workbook>`

func openBook(t *testing.T) *workbook.Workbook {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "book.twb", []byte(book), 0o644))
	wb, err := workbook.Open(fs, "book.twb")
	require.NoError(t, err)
	t.Cleanup(wb.Close)
	return wb
}

func count(t *testing.T, w *Writer, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, w.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func TestWriteWorkbook(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, w.WriteWorkbook(openBook(t)))

	var caption string
	require.NoError(t, w.DB().QueryRow(`SELECT caption FROM datasources WHERE name = 'federated.orders'`).Scan(&caption))
	assert.Equal(t, "Orders", caption)

	var formula string
	require.NoError(t, w.DB().QueryRow(`SELECT calculation FROM fields WHERE name = '[Calc]'`).Scan(&formula))
	assert.Equal(t, "1", formula)

	var sheet string
	require.NoError(t, w.DB().QueryRow(`SELECT worksheet FROM field_usage WHERE field = '[Region]'`).Scan(&sheet))
	assert.Equal(t, "Map", sheet)

	assert.Equal(t, 2, count(t, w, `SELECT COUNT(*) FROM fields`))
	assert.Equal(t, 2, count(t, w, `SELECT COUNT(DISTINCT dashboard) FROM dashboard_sheets`))
	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM dashboard_sheets WHERE dashboard = 'Blank' AND sheet IS NULL`))
	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM palettes WHERE name = 'Brand'`))
	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM color_encodings WHERE field = 'Region' AND palette = 'Brand'`))
}

func TestWriteWorkbook_ReplacesPreviousSnapshot(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	wb := openBook(t)
	require.NoError(t, w.WriteWorkbook(wb))
	require.NoError(t, w.WriteWorkbook(wb))

	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM datasources`))
	assert.Equal(t, 2, count(t, w, `SELECT COUNT(*) FROM fields`))
	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM field_usage`))
}

func TestNewWriter_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteWorkbook(openBook(t)))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	assert.Equal(t, 1, count(t, w, `SELECT COUNT(*) FROM datasources`))
}
