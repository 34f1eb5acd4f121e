package workbook

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/agentic-research/twbgraph/internal/graph"
	"github.com/agentic-research/twbgraph/internal/ingest"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RootTag(t *testing.T) {
	wb, _ := openFixture(t)
	assert.Equal(t, RootTag, wb.Tree().Tag(wb.Tree().Root()))
	assert.Equal(t, bookPath, wb.Path())
	assert.False(t, wb.Packaged())
}

func TestOpen_WrongRootIsFormatError(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, prefsPath, fixturePreferences)

	_, err := Open(fs, prefsPath)
	var fe *ingest.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, prefsPath, fe.Path)
}

func TestOpen_MissingFileIsIOError(t *testing.T) {
	_, err := Open(memfs.New(), "nope.twb")
	var ioe *ingest.IOError
	require.ErrorAs(t, err, &ioe)
}

func TestIndex_DataSources(t *testing.T) {
	wb, _ := openFixture(t)

	sources, err := wb.DataSources()
	require.NoError(t, err)
	names := []string{}
	for _, ds := range sources {
		names = append(names, ds.Name)
	}
	assert.Equal(t, []string{"Parameters", "federated.orders", "federated.targets"}, names)

	orders, err := wb.DataSource("federated.orders")
	require.NoError(t, err)
	assert.Equal(t, "Orders", orders.Caption)
	assert.Equal(t, []string{"[Region]", "[Sales]", "[Calculation_1]"}, orders.Fields.Names())

	calc, err := orders.Fields.Get("[Calculation_1]")
	require.NoError(t, err)
	assert.Equal(t, "SUM([Profit])/SUM([Sales])", calc.Calculation)
	assert.Equal(t, "Profit Ratio", calc.Caption)

	_, err = orders.Fields.Get("[Missing]")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_MetadataRecordFields(t *testing.T) {
	wb, _ := openFixture(t)
	targets, err := wb.DataSource("federated.targets")
	require.NoError(t, err)

	f, err := targets.Fields.Get("[Target]")
	require.NoError(t, err)
	assert.Equal(t, "real", f.Datatype)
	assert.Equal(t, "Sum", f.Aggregation)

	// [Region] is defined as a column and not duplicated.
	assert.Equal(t, []string{"[Region]", "[Target]"}, targets.Fields.Names())
}

func TestIndex_LookupMiss(t *testing.T) {
	wb, _ := openFixture(t)
	_, err := wb.DataSource("federated.deleted")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_DuplicateNamesLastWins(t *testing.T) {
	tree := graph.NewTree("workbook")
	_, err := tree.Append(tree.Root(), graph.E("datasources", nil,
		graph.E("datasource", graph.A("name", "dup", "caption", "first")),
		graph.E("datasource", graph.A("name", "dup", "caption", "second")),
	))
	require.NoError(t, err)

	idx := BuildIndex(tree)
	ds, err := idx.Lookup(tree, "dup")
	require.NoError(t, err)
	assert.Equal(t, "second", ds.Caption)
	assert.Equal(t, 1, idx.Len())
	all, err := idx.All(tree)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestIndex_NoCollectionIsEmpty(t *testing.T) {
	tree := graph.NewTree("workbook")
	idx := BuildIndex(tree)
	assert.Equal(t, 0, idx.Len())
	_, err := idx.Lookup(tree, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_RejectsOtherTree(t *testing.T) {
	wb, _ := openFixture(t)
	other, _ := openFixture(t)
	_, err := wb.index.Lookup(other.Tree(), "federated.orders")
	assert.Error(t, err)
}

func TestIndex_LookupFailsAfterClose(t *testing.T) {
	wb, _ := openFixture(t)
	wb.Close()

	_, err := wb.DataSource("federated.orders")
	assert.ErrorIs(t, err, graph.ErrClosed)
}

func TestIndex_ListingFailsAfterClose(t *testing.T) {
	wb, _ := openFixture(t)
	idx := wb.index
	wb.Close()

	sources, err := wb.DataSources()
	assert.ErrorIs(t, err, graph.ErrClosed)
	assert.Nil(t, sources)

	// Entries are released with the document.
	assert.Equal(t, 0, idx.Len())
	_, err = idx.All(graph.NewTree("workbook"))
	assert.Error(t, err)
}

func TestResolve_Worksheets(t *testing.T) {
	wb, _ := openFixture(t)
	assert.Equal(t, []string{"Map", "Table"}, wb.Worksheets())
}

func TestResolve_UsedInKeepsDuplicates(t *testing.T) {
	wb, _ := openFixture(t)
	orders, err := wb.DataSource("federated.orders")
	require.NoError(t, err)

	region, err := orders.Fields.Get("[Region]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Map", "Table", "Table"}, region.UsedIn())

	sales, err := orders.Fields.Get("[Sales]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Map"}, sales.UsedIn())

	calc, err := orders.Fields.Get("[Calculation_1]")
	require.NoError(t, err)
	assert.Empty(t, calc.UsedIn())
}

func TestResolve_SkipsDeletedDataSource(t *testing.T) {
	// federated.deleted is referenced by Map but not defined; opening must
	// still succeed and leave other data sources untouched.
	wb, _ := openFixture(t)
	targets, err := wb.DataSource("federated.targets")
	require.NoError(t, err)
	region, err := targets.Fields.Get("[Region]")
	require.NoError(t, err)
	assert.Empty(t, region.UsedIn())
}

func TestSaveAs_RoundTrip(t *testing.T) {
	wb, fs := openFixture(t)

	require.NoError(t, wb.SaveAs("copy/book.twb"))
	assert.Equal(t, bookPath, wb.Path(), "SaveAs must not change the document identity")

	again, err := Open(fs, "copy/book.twb")
	require.NoError(t, err)

	assert.Equal(t, wb.Palettes(), again.Palettes())
	assert.Equal(t, wb.ColorColumns(), again.ColorColumns())
	assert.Equal(t, wb.EncodedColorColumns(), again.EncodedColorColumns())
	assert.Equal(t, wb.ColorPaletteMap(), again.ColorPaletteMap())
	assert.Equal(t, wb.Dashboards(), again.Dashboards())
	assert.Equal(t, wb.Worksheets(), again.Worksheets())
}

func TestSave_WritesOriginalPath(t *testing.T) {
	wb, fs := openFixture(t)
	require.NoError(t, wb.SaveAs("other.twb"))
	require.NoError(t, wb.Tree().SetAttr(wb.Tree().Root(), "version", "19.0"))
	require.NoError(t, wb.Save())

	assert.Contains(t, readFile(t, fs, bookPath), "version='19.0'")
	assert.NotContains(t, readFile(t, fs, "other.twb"), "version='19.0'")
}

func TestPackaged_OpenAndSave(t *testing.T) {
	fs := memfs.New()
	pkg := zipBytes(t, map[string]string{
		"book.twb":           fixtureWorkbook,
		"Data/extract.hyper": "binary-extract",
		"Image/logo.png":     "png",
	}, "book.twb", "Data/extract.hyper", "Image/logo.png")
	require.NoError(t, util.WriteFile(fs, "book.twbx", pkg, 0o644))

	wb, err := Open(fs, "book.twbx")
	require.NoError(t, err)
	assert.True(t, wb.Packaged())
	assert.Equal(t, []string{"Map", "Table"}, wb.Worksheets())

	require.NoError(t, wb.SetPalette(prefsPath, "Brand"))

	raw, err := util.ReadFile(fs, "book.twbx")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	members := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		members[f.Name] = string(b)
	}
	assert.Equal(t, "binary-extract", members["Data/extract.hyper"])
	assert.Equal(t, "png", members["Image/logo.png"])
	assert.Contains(t, members["book.twb"], "name='Brand'")

	again, err := Open(fs, "book.twbx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Existing", "Brand"}, again.Palettes())
}

func TestPackaged_WithoutDocumentMember(t *testing.T) {
	fs := memfs.New()
	pkg := zipBytes(t, map[string]string{"Data/x.hyper": "x"}, "Data/x.hyper")
	require.NoError(t, util.WriteFile(fs, "empty.twbx", pkg, 0o644))

	_, err := Open(fs, "empty.twbx")
	var fe *ingest.FormatError
	assert.True(t, errors.As(err, &fe))
}
