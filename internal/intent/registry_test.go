package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(t.TempDir(), zap.NewNop())
}

func params(kv ...string) []ast.Param {
	var out []ast.Param
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, ast.Param{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestDefineAndExpand(t *testing.T) {
	r := newRegistry(t)

	in, err := r.Define("add_to_cart", []string{
		`goto https://shop.test/item/${sku}`,
		``,
		`  click "Add to cart"  `,
		`wait text "${sku} added"`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku"}, in.Params)
	assert.Equal(t, "session", in.Source)
	assert.Len(t, in.Lines, 3, "blank lines dropped, surviving lines trimmed")

	lines, err := r.Expand("add_to_cart", params("sku", "B-100"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"goto https://shop.test/item/B-100",
		`click "Add to cart"`,
		`wait text "B-100 added"`,
	}, lines)
}

func TestParamOrderFollowsFirstAppearance(t *testing.T) {
	r := newRegistry(t)
	in, err := r.Define("order", []string{
		"goto ${base}/search?q=${query}",
		"type 1 ${query}",
		"click ${button}",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "query", "button"}, in.Params)
}

func TestDefineRejectsBadInput(t *testing.T) {
	r := newRegistry(t)

	for _, name := range []string{"", "9lives", "has space", "a.b"} {
		_, err := r.Define(name, []string{"refresh"})
		assert.True(t, schemas.IsCode(err, schemas.CodeInvalidRequest), "name %q", name)
	}

	_, err := r.Define("empty", []string{"", "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no commands")
}

func TestExpandErrors(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Define("greet", []string{`type 1 "hello ${name}"`})
	require.NoError(t, err)

	_, err = r.Expand("missing_intent", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no intent named "missing_intent"`)

	_, err = r.Expand("greet", params("nmae", "bob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `has no parameter "nmae"`)

	_, err = r.Expand("greet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs name=...")
}

func TestUndefine(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Define("tmp", []string{"refresh"})
	require.NoError(t, err)

	require.NoError(t, r.Undefine("tmp"))
	_, ok := r.Lookup("tmp")
	assert.False(t, ok)

	err = r.Undefine("login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comes from builtin")

	err = r.Undefine("never_was")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no intent named")
}

func TestSessionShadowsBuiltin(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Define("login", []string{
		"goto https://sso.test/login",
		`type 1 "${user}"`,
	})
	require.NoError(t, err)

	in, ok := r.Lookup("login")
	require.True(t, ok)
	assert.Equal(t, "session", in.Source)

	names := map[string]string{}
	for _, info := range r.List(false) {
		names[info.Name] = info.Source
	}
	assert.Equal(t, "session", names["login"], "shadowed builtin must not be listed twice")

	require.NoError(t, r.Undefine("login"))
	in, ok = r.Lookup("login")
	require.True(t, ok)
	assert.Equal(t, "builtin", in.Source)
}

func TestListScopes(t *testing.T) {
	r := newRegistry(t)

	all := r.List(false)
	var names []string
	for _, in := range all {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"accept_cookies", "dismiss", "login", "search"}, names)

	assert.Empty(t, r.List(true))

	_, err := r.Define("zz_mine", []string{"refresh"})
	require.NoError(t, err)
	mine := r.List(true)
	require.Len(t, mine, 1)
	assert.Equal(t, "zz_mine", mine[0].Name)
}

func TestBuiltinLoginExpansion(t *testing.T) {
	r := newRegistry(t)

	in, ok := r.Lookup("login")
	require.True(t, ok)
	assert.Equal(t, []string{"user", "pass"}, in.Params)

	lines, err := r.Expand("login", params("user", "bob", "pass", "hunter2"))
	require.NoError(t, err)
	assert.Equal(t, []string{`login "bob" "hunter2"`}, lines)
}

func TestExportRoundTrip(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Define("checkout", []string{"click 12", "wait navigation"})
	require.NoError(t, err)

	out, err := r.Export("checkout")
	require.NoError(t, err)
	assert.Equal(t, []string{"define checkout", "  click 12", "  wait navigation", "end"}, out)

	_, err = r.Export("ghost")
	assert.True(t, schemas.IsCode(err, schemas.CodeInvalidRequest))
}
