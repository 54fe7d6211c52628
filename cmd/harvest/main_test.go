package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/event-harvest/internal/interchange"
)

const showsYAML = `categories:
  - name: shows
    columns: [name, content1]
    content_fields: [content1]
    discovery:
      strategy: paginated
      url_template: "https://shows.example/list?p={page}"
      ranges: [{start: 1, end: 2}]
      link:
        path_contains: "/show/"
        handler: {name: goDetail, url_template: "https://shows.example/show/{id}"}
    selectors:
      - field: name
        text: h1
      - field: content1
        text: p.desc
`

const manifest = `pages:
  - url: https://shows.example/list?p=1
    files: [list.html]
  - url: https://shows.example/show/1
    files: [show-1.html]
  - url: https://shows.example/show/2
    files: [show-2.html]
  - url: https://shows.example/show/3
    files: [show-3.html]
`

// writeFixtures lays out a recorded site and a category file under a temp dir.
func writeFixtures(t *testing.T) (fixtures, categories string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"manifest.yaml": manifest,
		"list.html": `<html><body>
			<a href="/show/1">one</a>
			<a href="javascript:void(0)" onclick="goDetail('2')">two</a>
			<a href="/show/3">three</a>
		</body></html>`,
		"show-1.html": `<html><body><h1>Hamlet</h1><p class="desc">A prince.</p></body></html>`,
		"show-2.html": `<html><body><h1>Cats</h1><p class="desc">Cats sing.</p></body></html>`,
		"show-3.html": `<html><body><h1>Untitled</h1></body></html>`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	categories = filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(categories, []byte(showsYAML), 0o644))
	return dir, categories
}

// TestRun_FixturesEndToEnd verifies a replayed harvest writes both files, drops the
// record without content and embeds the rest.
func TestRun_FixturesEndToEnd(t *testing.T) {
	t.Setenv("RATE_PER_SECOND", "1000")
	t.Setenv("EMBED_DIMENSION", "8")
	fixtures, categories := writeFixtures(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-fixtures", fixtures, "-categories", categories, "-out", out,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr=%s", stderr.String())

	assert.Contains(t, stdout.String(), "shows: discovered=3 already_harvested=0 retained=2 dropped=1 skipped=0")

	f, err := os.Open(filepath.Join(out, "shows.json"))
	require.NoError(t, err)
	defer f.Close()
	ds, err := interchange.ReadJSON(f, "shows")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "content"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	name, _ := ds.Rows[1].Get("name")
	assert.Equal(t, "Cats", name)
	assert.Len(t, ds.Rows[0].Embedding, 8)

	assert.FileExists(t, filepath.Join(out, "shows.csv"))
}

func TestRun_NoVectorize(t *testing.T) {
	t.Setenv("RATE_PER_SECOND", "1000")
	fixtures, categories := writeFixtures(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-fixtures", fixtures, "-categories", categories, "-out", out, "-no-vectorize", "-category", "shows",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr=%s", stderr.String())

	raw, err := os.ReadFile(filepath.Join(out, "shows.csv"))
	require.NoError(t, err)
	header, _, _ := strings.Cut(string(raw), "\n")
	assert.Equal(t, "name,content", header)
}

func TestRun_MissingPageIsSkipped(t *testing.T) {
	t.Setenv("RATE_PER_SECOND", "1000")
	fixtures, categories := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(fixtures, "manifest.yaml"),
		[]byte(strings.Replace(manifest, "  - url: https://shows.example/show/1\n    files: [show-1.html]\n", "", 1)), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-fixtures", fixtures, "-categories", categories, "-out", t.TempDir(), "-no-vectorize",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr=%s", stderr.String())
	assert.Contains(t, stdout.String(), "retained=1 dropped=1 skipped=1")
	assert.Contains(t, stdout.String(), "failed https://shows.example/show/1")
}

func TestRun_UsageErrors(t *testing.T) {
	_, categories := writeFixtures(t)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"-bogus"}, &stdout, &stderr))
	assert.Equal(t, 2, run(context.Background(), []string{"-categories", categories, "-category", "opera"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown category "opera"`)

	t.Setenv("STORE_DRIVER", "mongo")
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
}

func TestRun_Convert(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,content\n,hello\n"), 0o644))

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-convert", path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"name": null`)

	assert.Equal(t, 1, run(context.Background(), []string{"-convert", path + ".missing"}, &stdout, &stderr))
}
