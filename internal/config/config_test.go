package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIni(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pgqd.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeIni(t, "[pgqd]\nbase_connstr = host=127.0.0.1\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "template1", cfg.InitialDatabase)
	assert.Equal(t, 60*time.Second, cfg.CheckPeriod)
	assert.Equal(t, 120*time.Second, cfg.MaintPeriod)
	assert.Equal(t, 30*time.Second, cfg.RetryPeriod)
	assert.Equal(t, time.Second, cfg.TickerPeriod)
	assert.Equal(t, 30*time.Second, cfg.StatsPeriod)
	assert.Equal(t, 3600*time.Second, cfg.ConnectionLifetime)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadOverridesAndDatabaseList(t *testing.T) {
	path := writeIni(t, `[pgqd]
base_connstr = host=db1
database_list = app1, app2  app3
check_period = 15
log_format = json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"app1", "app2", "app3"}, cfg.DatabaseList)
	assert.Equal(t, 15*time.Second, cfg.CheckPeriod)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadMissingBaseConnStrFails(t *testing.T) {
	path := writeIni(t, "[pgqd]\ncheck_period = 5\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonPositivePeriod(t *testing.T) {
	path := writeIni(t, "[pgqd]\nbase_connstr = host=db1\nmaint_period = 0\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	assert.Error(t, err)
}

func TestReloadOnBrokenFileKeepsPrevious(t *testing.T) {
	path := writeIni(t, "[pgqd]\nbase_connstr = host=db1\n")
	prev, err := Load(path)
	require.NoError(t, err)

	got, err := Reload(filepath.Join(t.TempDir(), "missing.ini"), prev)
	assert.Error(t, err)
	assert.Same(t, prev, got)
}

func TestReloadOnValidFileReturnsNewConfig(t *testing.T) {
	path := writeIni(t, "[pgqd]\nbase_connstr = host=db1\n")
	prev, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[pgqd]\nbase_connstr = host=db2\n"), 0o644))
	next, err := Reload(path, prev)
	require.NoError(t, err)
	assert.Equal(t, "host=db2", next.BaseConnStr)
}

func TestConnStrComposition(t *testing.T) {
	cfg := &Config{BaseConnStr: "host=127.0.0.1"}
	assert.Equal(t, "host=127.0.0.1 dbname=app1 ", cfg.ConnStr("app1"))
}

func TestSampleRendersSection(t *testing.T) {
	out := Sample()
	assert.Contains(t, out, "[pgqd]")
	assert.Contains(t, out, "base_connstr")
}
