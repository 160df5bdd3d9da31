package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TongWu/tabletracer/internal/lineage"
)

func sampleRows() []lineage.Row {
	return []lineage.Row{
		{Target: "rpt.tgt", Layers: []string{"stg.mid", "stg.low"}, Source: "src.raw"},
		{Target: "rpt.tgt", Source: "src.direct"},
		{Target: "rpt.solo", Source: "rpt.solo"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	want := "Target Table,Layer 1,Layer 2,Source Table\n" +
		"rpt.tgt,stg.mid,stg.low,src.raw\n" +
		"rpt.tgt,,,src.direct\n" +
		"rpt.solo,,,rpt.solo\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Target Table,Source Table\n", buf.String())
}

func TestReadCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rows := sampleRows()
	require.NoError(t, WriteCSV(&buf, rows))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadCSV_StripsBOMAndPadding(t *testing.T) {
	in := "\uFEFFTarget Table,Layer 1,Source Table\n" +
		" rpt.tgt , stg.mid , src.raw \n"
	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, lineage.Row{
		Target: "rpt.tgt",
		Layers: []string{"stg.mid"},
		Source: "src.raw",
	}, got[0])
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Target Table,Layer 1\nx,y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Source Table")

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleRows()))

	out := buf.String()
	assert.Contains(t, out, "TARGET TABLE")
	assert.Contains(t, out, "rpt.tgt")
	assert.Contains(t, out, "(3 rows)")
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, nil))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, sampleRows()[:1]))

	out := buf.String()
	assert.Contains(t, out, `"target": "rpt.tgt"`)
	assert.Contains(t, out, `"stg.mid"`)
	assert.Contains(t, out, `"source": "src.raw"`)
}

func TestSaveAndLoadCSV(t *testing.T) {
	path := t.TempDir() + "/out/lineage.csv"
	rows := sampleRows()
	require.NoError(t, SaveCSV(path, rows))

	got, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
