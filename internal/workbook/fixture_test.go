package workbook

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

const fixtureWorkbook = `<?xml version='1.0' encoding='utf-8' ?>
<workbook source-build='2024.1.0' version='18.1' xmlns:user='http://www.tableausoftware.com/xml/user'>
  <preferences>
    <preference name='ui.encoding.shelf.height' value='24' />
    <color-palette name='Existing' type='regular'>
      <color>#ffffff</color>
    </color-palette>
  </preferences>
  <datasources>
    <datasource hasconnection='false' inline='true' name='Parameters' version='18.1'>
      <aliases enabled='yes' />
      <column caption='Top N' datatype='integer' name='[Parameter 1]' role='measure' type='quantitative' value='10' />
      <layout dim-ordering='alphabetic' measure-ordering='alphabetic' show-structure='true' />
    </datasource>
    <datasource caption='Orders' inline='true' name='federated.orders' version='18.1'>
      <connection class='federated' />
      <aliases enabled='yes' />
      <column datatype='string' name='[Region]' role='dimension' type='nominal' />
      <column datatype='real' name='[Sales]' role='measure' type='quantitative' />
      <column caption='Profit Ratio' datatype='real' name='[Calculation_1]' role='measure' type='quantitative'>
        <calculation class='tableau' formula='SUM([Profit])/SUM([Sales])' />
      </column>
      <layout dim-ordering='alphabetic' measure-ordering='alphabetic' show-structure='true' />
      <semantic-values>
        <semantic-value key='[Country].[Name]' value='&quot;United States&quot;' />
      </semantic-values>
    </datasource>
    <datasource caption='Targets' inline='true' name='federated.targets' version='18.1'>
      <connection class='federated'>
        <metadata-records>
          <metadata-record class='column'>
            <local-name>[Target]</local-name>
            <local-type>real</local-type>
            <aggregation>Sum</aggregation>
          </metadata-record>
        </metadata-records>
      </connection>
      <_.fcp.ObjectModelTableType.true...column caption='Targets' datatype='table' name='[__tableau_internal_object_id__].[Targets_1]' role='measure' type='quantitative' />
      <column datatype='string' name='[Region]' role='dimension' type='nominal' />
      <layout dim-ordering='alphabetic' measure-ordering='alphabetic' show-structure='true' />
      <style>
        <style-rule element='mark'>
          <encoding attr='color' field='[none:Region:nk]' palette='Existing' type='palette' />
        </style-rule>
      </style>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Map'>
      <table>
        <view>
          <datasources>
            <datasource caption='Orders' name='federated.orders' />
          </datasources>
          <datasource-dependencies datasource='federated.orders'>
            <column datatype='string' name='[Region]' role='dimension' type='nominal' />
            <column datatype='real' name='[Sales]' role='measure' type='quantitative' />
            <column-instance column='[Sales]' derivation='Sum' name='[sum:Sales:qk]' pivot='key' type='quantitative' />
          </datasource-dependencies>
          <datasource-dependencies datasource='federated.deleted'>
            <column datatype='string' name='[Gone]' />
          </datasource-dependencies>
        </view>
        <style>
          <style-rule element='cell'>
            <format attr='width' value='80' />
          </style-rule>
        </style>
        <panes>
          <pane>
            <encodings>
              <color column='[federated.orders].[sum:Sales:qk]' />
            </encodings>
          </pane>
        </panes>
        <rows>[federated.orders].[none:Region:nk]</rows>
      </table>
    </worksheet>
    <worksheet name='Table'>
      <table>
        <view>
          <datasources>
            <datasource name='federated.orders' />
          </datasources>
          <datasource-dependencies datasource='federated.orders'>
            <column name='[Region]' />
            <column name='[Region]' />
            <column name='[Unknown]' />
          </datasource-dependencies>
        </view>
        <panes>
          <pane>
            <encodings>
              <color column='[federated.orders].[none:Region:nk]' />
            </encodings>
          </pane>
        </panes>
      </table>
    </worksheet>
  </worksheets>
  <dashboards>
    <dashboard name='Sales' type='default'>
      <zones>
        <zone id='1' type-v2='layout-basic'>
          <zone id='2' name='Map' />
          <zone id='3' name='Table' />
          <zone id='4' name='Map' />
        </zone>
      </zones>
    </dashboard>
    <dashboard name='Legacy'>
      <zones>
        <zone id='5' name='Map' />
      </zones>
    </dashboard>
    <dashboard name='Empty' type=''>
      <zones />
    </dashboard>
  </dashboards>
</workbook>
`

const fixturePreferences = `<?xml version='1.0'?>
<preferences>
  <color-palettes>
    <color-palette name='Brand' type='ordered-sequential'>
      <color>#003f5c</color>
      <color>#ffa600</color>
    </color-palette>
    <color-palette name='Other' type='regular'>
      <color>#000000</color>
    </color-palette>
  </color-palettes>
</preferences>
`

const (
	bookPath  = "book.twb"
	prefsPath = "Preferences/Preferences.tps"
)

func writeFile(t *testing.T, fs billy.Filesystem, path, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
}

func readFile(t *testing.T, fs billy.Filesystem, path string) string {
	t.Helper()
	b, err := util.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

// openFixture loads the fixture workbook from an in-memory filesystem that
// also holds the fixture preference file.
func openFixture(t *testing.T) (*Workbook, billy.Filesystem) {
	t.Helper()
	return openMarkup(t, fixtureWorkbook)
}

func openMarkup(t *testing.T, markup string) (*Workbook, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	writeFile(t, fs, bookPath, markup)
	writeFile(t, fs, prefsPath, fixturePreferences)
	wb, err := Open(fs, bookPath)
	require.NoError(t, err)
	return wb, fs
}

func zipBytes(t *testing.T, members map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
