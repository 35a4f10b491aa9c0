package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyuri/shpimport/internal/importer"
	"github.com/dyuri/shpimport/internal/mapper"
	"github.com/dyuri/shpimport/internal/model"
)

// chdirTemp runs the test from an empty directory so no stray config file
// is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "current", cfg.Color)
	assert.Equal(t, "point", cfg.PointMode)
	assert.Equal(t, importer.DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)

	opts, err := cfg.ImportOptions()
	require.NoError(t, err)
	assert.True(t, opts.Style.Color.IsCurrent())
	assert.True(t, opts.Style.Layer.IsCurrent())
	assert.True(t, opts.Style.Label.IsCurrent())
	assert.Equal(t, mapper.PointAsPoint, opts.Mapping.PointMode)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := chdirTemp(t)
	file := filepath.Join(dir, "import.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
layer: roads
color: "field:COLOR"
width: "0.5"
point_mode: label
label: field:NAME
log:
  level: debug
`), 0644))
	t.Setenv("SHPIMPORT_LINETYPE", "dashed")
	t.Setenv("SHPIMPORT_LOG_FORMAT", "json")

	v := New()
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	fs.Bool("trust-part-types", false, "")
	fs.Int("queue-size", 0, "")
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--trust-part-types", "--queue-size=8"}))

	cfg, err := Load(v, file)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts, err := cfg.ImportOptions()
	require.NoError(t, err)
	assert.Equal(t, "roads", opts.Layer)
	layer, ok := opts.Style.Layer.Value()
	assert.True(t, ok)
	assert.Equal(t, "roads", layer)
	field, ok := opts.Style.Color.Field()
	assert.True(t, ok)
	assert.Equal(t, "COLOR", field)
	lt, _ := opts.Style.LineType.Value()
	assert.Equal(t, "DASHED", lt)
	w, _ := opts.Style.Width.Value()
	assert.Equal(t, 0.5, w)
	label, _ := opts.Style.Label.Field()
	assert.Equal(t, "NAME", label)
	assert.Equal(t, mapper.PointAsLabel, opts.Mapping.PointMode)
	assert.True(t, opts.Mapping.TrustPartTypes)
	assert.Equal(t, 8, opts.QueueSize)
}

func TestLayerFieldWins(t *testing.T) {
	cfg := &Config{Layer: "fallback", LayerField: "LAYER", PointMode: "point", QueueSize: 1}
	opts, err := cfg.ImportOptions()
	require.NoError(t, err)
	name, ok := opts.Style.Layer.Field()
	assert.True(t, ok)
	assert.Equal(t, "LAYER", name)
	assert.Equal(t, "fallback", opts.Layer)
}

func TestImportOptionsErrors(t *testing.T) {
	for _, cfg := range []Config{
		{Color: "not-a-color", PointMode: "point"},
		{Width: "-2", PointMode: "point"},
		{LineType: "field:", PointMode: "point"},
		{PointMode: "marker"},
	} {
		_, err := cfg.ImportOptions()
		assert.Error(t, err, "%+v", cfg)
	}

	cfg := &Config{Color: "3", PointMode: "point"}
	opts, err := cfg.ImportOptions()
	require.NoError(t, err)
	c, _ := opts.Style.Color.Value()
	assert.Equal(t, model.Color{G: 255}, c)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load(New(), "nope.yaml")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test, restoring
// it on cleanup (stand-in for testing.T.Chdir, which needs Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
