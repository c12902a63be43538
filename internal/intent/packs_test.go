package intent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func writePackDir(t *testing.T, root, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for file, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
	}
}

func TestDiscoverAndLoadPack(t *testing.T) {
	dir := t.TempDir()
	writePackDir(t, dir, "shop", map[string]string{
		"cart.oil": `
# Cart helpers.
define open_cart
  goto ${base}/cart
  wait ready
end
`,
		"auth.oil": `
define staff_login
  login "${user}" "${pass}"
end
`,
	})
	r := New(dir, zap.NewNop())

	packs := r.Packs()
	require.Len(t, packs, 1)
	assert.Equal(t, "shop", packs[0].Name)
	assert.False(t, packs[0].Loaded)
	assert.Zero(t, packs[0].Intents)

	n, err := r.LoadPack("shop")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	packs = r.Packs()
	require.Len(t, packs, 1)
	assert.True(t, packs[0].Loaded)
	assert.Equal(t, 2, packs[0].Intents)

	in, ok := r.Lookup("open_cart")
	require.True(t, ok)
	assert.Equal(t, "shop", in.Source)
	assert.Equal(t, []string{"base"}, in.Params)
}

func TestSingleFilePack(t *testing.T) {
	dir := t.TempDir()
	body := "define ping\n  refresh\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.oil"), []byte(body), 0o644))
	r := New(dir, zap.NewNop())

	n, err := r.LoadPack("tools")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := r.Lookup("ping")
	assert.True(t, ok)
}

func TestLoadPackParseErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"stray line", "click 1\n", "expected define"},
		{"missing end", "define a\n  refresh\n", "missing end"},
		{"nested define", "define a\ndefine b\nend\n", "define inside define"},
		{"empty block", "define a\nend\n", "no commands"},
		{"bad name", "define 9lives\n  refresh\nend\n", "invalid intent name"},
		{"end without define", "end\n", "end without define"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writePackDir(t, dir, "broken", map[string]string{"p.oil": tc.body})
			r := New(dir, zap.NewNop())
			_, err := r.LoadPack("broken")
			require.Error(t, err)
			assert.True(t, schemas.IsCode(err, schemas.CodeInvalidRequest))
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "p.oil:", "errors carry file and line")
		})
	}
}

func TestLoadPackMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, zap.NewNop())

	_, err := r.LoadPack("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no pack named "ghost"`)

	writePackDir(t, dir, "hollow", map[string]string{"README.md": "not oil"})
	_, err = r.LoadPack("hollow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .oil files")
}

func TestUnloadPack(t *testing.T) {
	dir := t.TempDir()
	writePackDir(t, dir, "shop", map[string]string{"p.oil": "define ping\n  refresh\nend\n"})
	r := New(dir, zap.NewNop())

	_, err := r.LoadPack("shop")
	require.NoError(t, err)
	require.NoError(t, r.UnloadPack("shop"))

	_, ok := r.Lookup("ping")
	assert.False(t, ok)

	err = r.UnloadPack("shop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not loaded")
}

func TestSessionShadowsPack(t *testing.T) {
	dir := t.TempDir()
	writePackDir(t, dir, "shop", map[string]string{"p.oil": "define ping\n  refresh\nend\n"})
	r := New(dir, zap.NewNop())
	_, err := r.LoadPack("shop")
	require.NoError(t, err)

	_, err = r.Define("ping", []string{"goto https://mine.test"})
	require.NoError(t, err)

	in, ok := r.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "session", in.Source)

	require.NoError(t, r.Undefine("ping"))
	in, ok = r.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "shop", in.Source)
}

func TestPackNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/oil-shop.git": "oil-shop",
		"https://github.com/acme/oil-shop":     "oil-shop",
		"https://github.com/acme/oil-shop/":    "oil-shop",
		"git@github.com:acme/packs.git":        "packs",
		"file:///srv/packs/local_pack":         "local_pack",
		"https://example.com":                  "",
		"":                                     "",
	}
	for url, want := range cases {
		assert.Equal(t, want, packNameFromURL(url), "url %q", url)
	}
}

func TestInstallPackGuards(t *testing.T) {
	dir := t.TempDir()
	writePackDir(t, dir, "taken", map[string]string{"p.oil": "define ping\n  refresh\nend\n"})
	r := New(dir, zap.NewNop())

	_, _, err := r.InstallPack(context.Background(), "https://github.com/acme/taken.git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already installed")

	_, _, err = r.InstallPack(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot derive a pack name")

	noDir := New("", zap.NewNop())
	_, _, err = noDir.InstallPack(context.Background(), "https://github.com/acme/thing.git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packs_dir")
	assert.Empty(t, noDir.Packs())
}
