package corpus

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestListSourceFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "jobs/etl_a.py", "# spark job")
	writeFile(t, dir, "views/v_orders.SQL", "create view rpt.v_orders as select 1")
	writeFile(t, dir, "jobs/load.sas", "data work.x; run;")
	writeFile(t, dir, "README.md", "docs")

	files, err := ListSourceFiles(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 3)
	// Sorted, and extension matching is case-insensitive.
	assert.Equal(t, filepath.Join(dir, "jobs/etl_a.py"), files[0])
	assert.Equal(t, filepath.Join(dir, "jobs/load.sas"), files[1])
	assert.Equal(t, filepath.Join(dir, "views/v_orders.SQL"), files[2])
}

func TestListSourceFiles_FilteredExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "x")
	writeFile(t, dir, "b.sas", "x")

	files, err := ListSourceFiles(dir, []string{".sas"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "b.sas"), files[0])
}

func TestListSourceFiles_MissingRoot(t *testing.T) {
	_, err := ListSourceFiles(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestListSourceFiles_EmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "nothing to scan")

	_, err := ListSourceFiles(dir, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestReader_ReadText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.py", "spark.table('db.tbl')")

	r := NewReader(slog.New(slog.DiscardHandler))
	text, ok := r.ReadText(path)
	require.True(t, ok)
	assert.Equal(t, "spark.table('db.tbl')", text)

	// Second read is served from cache.
	text2, ok := r.ReadText(path)
	require.True(t, ok)
	assert.Equal(t, text, text2)
}

func TestReader_ReadText_Latin1Fallback(t *testing.T) {
	dir := t.TempDir()
	// 0xE9 is 'é' in Latin-1 but invalid UTF-8.
	path := filepath.Join(dir, "legacy.sas")
	require.NoError(t, os.WriteFile(path, []byte("/* r\xE9sum\xE9 */ data work.t; run;"), 0o600))

	r := NewReader(nil)
	text, ok := r.ReadText(path)
	require.True(t, ok)
	assert.Contains(t, text, "résumé")
	assert.Contains(t, text, "data work.t")
}

func TestReader_ReadText_Missing(t *testing.T) {
	r := NewReader(nil)
	_, ok := r.ReadText(filepath.Join(t.TempDir(), "missing.py"))
	assert.False(t, ok)
}

func TestReader_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bom.sql", "\uFEFFcreate view db.v as select 1")

	r := NewReader(nil)
	text, ok := r.ReadText(path)
	require.True(t, ok)
	assert.Equal(t, "create view db.v as select 1", text)
}
