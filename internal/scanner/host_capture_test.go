package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func TestRecordQuality(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 80},
		{"low", 50},
		{"MEDIUM", 80},
		{"high", 90},
		{"65", 65},
		{"1", 1},
		{"100", 100},
	}
	for _, c := range cases {
		got, err := recordQuality(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}

	for _, bad := range []string{"0", "101", "-5", "huge"} {
		_, err := recordQuality(bad)
		var execErr *schemas.ExecError
		require.ErrorAs(t, err, &execErr, "input %q", bad)
		assert.Equal(t, schemas.CodeInvalidRequest, execErr.Code)
		assert.Contains(t, execErr.Message, "quality must be")
	}
}

func TestWriteTraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "run1.json")
	chunks := [][]byte{[]byte(`{"name":"a"}`), []byte(`{"name":"b"}`)}

	require.NoError(t, writeTraceFile(path, chunks))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"traceEvents":[{"name":"a"},{"name":"b"}]}`, string(data))
}

func TestWriteTraceFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, writeTraceFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"traceEvents":[]}`, string(data))
}
