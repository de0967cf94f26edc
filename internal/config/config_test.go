package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "symphony.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "tbl_", cfg.TablePrefix)
	assert.Equal(t, 20, cfg.PaginationMaxRows)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeYAML(t, `
port: "9000"
db_driver: pgx
db_url: postgres://file
pagination_max_rows: 50
log_level: debug
`)
	t.Setenv("SYMPHONY_DB_URL", "postgres://env")
	t.Setenv("SYMPHONY_PAGINATION_MAX_ROWS", "30")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "7000", "--table-prefix", "sym_"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)                  // флаг
	assert.Equal(t, "postgres://env", cfg.DBURL)       // окружение
	assert.Equal(t, 30, cfg.PaginationMaxRows)         // окружение поверх файла
	assert.Equal(t, "pgx", cfg.DBDriver)               // файл
	assert.Equal(t, "debug", cfg.LogLevel)             // файл
	assert.Equal(t, "sym_", cfg.TablePrefix)           // флаг
	assert.Equal(t, "datasources", cfg.DatasourcesDir) // умолчание
}

func TestLoad_ConfigFlag(t *testing.T) {
	path := writeYAML(t, "sections_dir: content/sections\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "content/sections", cfg.SectionsDir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeYAML(t, "db_driver: mysql\npagination_max_rows: 0\n")
	_, err = Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_driver")
	assert.Contains(t, err.Error(), "pagination_max_rows")
}
