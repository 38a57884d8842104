package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "http://localhost:9090", cfg.BaseURL)
	assert.Equal(t, "demo/recording/flagd-ui-demo.gif", cfg.OutputPath)
	assert.True(t, cfg.Headless)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"BASE_URL":          "http://ui:8080",
		"OUTPUT":            "out/demo.webm",
		"DEMO_WORK_DIR":     "tmp/raw",
		"DEMO_SCRIPT":       "demo.yaml",
		"DEMO_STRICT":       "true",
		"DEMO_HEADLESS":     "0",
		"DEMO_WAIT_TIMEOUT": "5s",
		"DEMO_STATS":        "1",
		"CHROME_PATH":       "/usr/bin/chromium",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://ui:8080", cfg.BaseURL)
	assert.Equal(t, "out/demo.webm", cfg.OutputPath)
	assert.Equal(t, "tmp/raw", cfg.WorkDir)
	assert.Equal(t, "demo.yaml", cfg.ScriptPath)
	assert.True(t, cfg.Strict)
	assert.False(t, cfg.Headless)
	assert.True(t, cfg.ShowStats)
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "/usr/bin/chromium", cfg.ChromePath)
}

func TestFromEnvEmptyValuesIgnored(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"BASE_URL": "", "DEMO_HEADLESS": ""}))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.True(t, cfg.Headless)
}

func TestFromEnvBadValues(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"DEMO_STRICT":       "maybe",
		"DEMO_WAIT_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEMO_STRICT")
	assert.Contains(t, err.Error(), "DEMO_WAIT_TIMEOUT")
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEMO2GIF_TEST_KEY=from-file\n"), 0644))
	t.Setenv("DEMO2GIF_TEST_KEY", "")
	os.Unsetenv("DEMO2GIF_TEST_KEY")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("DEMO2GIF_TEST_KEY"))
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEMO2GIF_TEST_KEEP=file\n"), 0644))
	t.Setenv("DEMO2GIF_TEST_KEEP", "process")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "process", os.Getenv("DEMO2GIF_TEST_KEEP"))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.WaitTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.OutputPath = ""
	assert.Error(t, cfg.Validate())
}
