package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texlsp/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 300*time.Millisecond, cfg.DiagnosticsDelay.Std())
	assert.Equal(t, "127.0.0.1:0", cfg.GraphAddress)
	assert.Empty(t, cfg.RootDirectories)
}

func TestLoadOverlaysPresentFields(t *testing.T) {
	cfg, err := config.Load(map[string]any{
		"root_directories":  []string{"build", "styles"},
		"diagnostics_delay": 150,
		"watch":             true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "styles"}, cfg.RootDirectories)
	assert.Equal(t, 150*time.Millisecond, cfg.DiagnosticsDelay.Std())
	assert.True(t, cfg.Watch)
	assert.Equal(t, 4, cfg.Workers)
}

func TestOverlayUnwrapsSection(t *testing.T) {
	base, err := config.Load(map[string]any{"workers": 2})
	require.NoError(t, err)
	cfg, err := config.Overlay(base, map[string]any{
		"texlsp": map[string]any{"diagnostics_delay": "1s"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, time.Second, cfg.DiagnosticsDelay.Std())
}

func TestInvalidValues(t *testing.T) {
	for name, v := range map[string]any{
		"workers":  map[string]any{"workers": 0},
		"delay":    map[string]any{"diagnostics_delay": "soon"},
		"negative": map[string]any{"diagnostics_delay": "-1s"},
		"root":     map[string]any{"root_directories": []string{" "}},
		"type":     map[string]any{"watch": "yes"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(v)
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := config.LoadFromYAML(strings.NewReader(`
root_directories: [out]
diagnostics_delay: 500ms
index_on_startup: true
metrics_address: ":9090"
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, cfg.RootDirectories)
	assert.Equal(t, 500*time.Millisecond, cfg.DiagnosticsDelay.Std())
	assert.True(t, cfg.IndexOnStartup)
	assert.Equal(t, ":9090", cfg.MetricsAddress)

	_, err = config.LoadFromYAML(strings.NewReader("unknown_key: 1\n"))
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg, err = config.LoadFromYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "texlsp.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"workers": 8, "diagnostics_delay": "2s"}`), 0o644))
	cfg, err := config.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.DiagnosticsDelay.Std())

	yamlPath := filepath.Join(dir, "texlsp.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("build_on_save: true\n"), 0o644))
	cfg, err = config.LoadFile(yamlPath)
	require.NoError(t, err)
	assert.True(t, cfg.BuildOnSave)

	_, err = config.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
