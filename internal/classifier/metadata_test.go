package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMetadata(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMetadataDefaults(t *testing.T) {
	md, err := LoadMetadata(writeMetadata(t, `{"image_size": 128, "parameters": 3453121}`))
	require.NoError(t, err)

	assert.Equal(t, "input", md.InputName)
	assert.Equal(t, "output", md.OutputName)
	assert.Equal(t, LayoutNHWC, md.Layout)
	assert.Equal(t, []int64{1, 128, 128, 3}, md.InputShape)
	assert.Equal(t, []int64{1, 1}, md.OutputShape)
	assert.Equal(t, DefaultClasses, md.Classes)
	assert.Equal(t, "128x128", md.InputSize())
	assert.Equal(t, int64(3453121), md.Parameters)
}

func TestLoadMetadataNCHW(t *testing.T) {
	md, err := LoadMetadata(writeMetadata(t, `{"image_size": 64, "layout": "NCHW", "output_shape": [1, 2]}`))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 64, 64}, md.InputShape)
	assert.Equal(t, []int64{1, 2}, md.OutputShape)
}

func TestLoadMetadataErrors(t *testing.T) {
	cases := map[string]string{
		"no size":        `{}`,
		"bad layout":     `{"image_size": 64, "layout": "hwc"}`,
		"shape mismatch": `{"image_size": 64, "input_shape": [1, 32, 32, 3]}`,
		"bad json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMetadata(writeMetadata(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
