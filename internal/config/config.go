package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix — префикс переменных окружения: SYMPHONY_DB_URL -> db_url.
const EnvPrefix = "SYMPHONY_"

// DefaultFile — конфиг, который читается, если путь не задан явно.
const DefaultFile = "symphony.yaml"

type Config struct {
	Port           string `koanf:"port"`
	SectionsDir    string `koanf:"sections_dir"`
	DatasourcesDir string `koanf:"datasources_dir"`

	DBDriver    string `koanf:"db_driver"` // "pgx" | "sqlite"
	DBURL       string `koanf:"db_url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
	TablePrefix string `koanf:"table_prefix"`

	// Файлы загрузок (локально)
	FilesRoot string `koanf:"files_root"`

	// Токен автора: без него закрыты blueprints и admin
	AuthorToken       string `koanf:"author_token"`
	PaginationMaxRows int    `koanf:"pagination_max_rows"`

	LogLevel string `koanf:"log_level"`
	LogDev   bool   `koanf:"log_dev"`
	Version  string `koanf:"version"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":                "8080",
		"sections_dir":        "sections",
		"datasources_dir":     "datasources",
		"db_driver":           "sqlite",
		"db_url":              "symphony.db",
		"auto_migrate":        true,
		"table_prefix":        "tbl_",
		"files_root":          "uploads",
		"author_token":        "",
		"pagination_max_rows": 20,
		"log_level":           "info",
		"log_dev":             false,
		"version":             "dev",
	}
}

// Flags регистрирует флаги, которые перекрывают файл и окружение.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config YAML (default "+DefaultFile+" if present)")
	fs.String("port", "8080", "HTTP port")
	fs.String("sections-dir", "sections", "Directory with section YAML files")
	fs.String("datasources-dir", "datasources", "Directory with generated datasources")
	fs.String("db-driver", "sqlite", "Database driver (pgx/sqlite)")
	fs.String("db-url", "symphony.db", "Database URL or sqlite file")
	fs.Bool("auto-migrate", true, "Sync sections and create tables on start")
	fs.String("table-prefix", "tbl_", "Table name prefix")
	fs.String("files-root", "uploads", "Local files root")
	fs.String("author-token", "", "Bearer token for author endpoints")
	fs.Int("pagination-max-rows", 20, "Default page size")
	fs.String("log-level", "info", "Log level (debug/info/warn/error)")
	fs.Bool("log-dev", false, "Human readable logs")
}

// Load собирает конфиг: умолчания -> YAML -> SYMPHONY_* -> явно заданные флаги.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" && flags != nil {
		path, _ = flags.GetString("config")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config %s: %w", path, os.ErrNotExist)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.trim()
	return cfg, cfg.Validate()
}

func (c *Config) trim() {
	c.Port = strings.TrimSpace(c.Port)
	c.SectionsDir = strings.TrimSpace(c.SectionsDir)
	c.DatasourcesDir = strings.TrimSpace(c.DatasourcesDir)
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBURL = strings.TrimSpace(c.DBURL)
	c.FilesRoot = strings.TrimSpace(c.FilesRoot)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate проверяет то, без чего сервер не стартует.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "pgx", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("db_driver: unknown driver %q (pgx/sqlite)", c.DBDriver))
	}
	if c.DBURL == "" {
		errs = append(errs, errors.New("db_url: required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port: required"))
	}
	if c.PaginationMaxRows < 1 {
		errs = append(errs, fmt.Errorf("pagination_max_rows: must be positive, got %d", c.PaginationMaxRows))
	}
	return errors.Join(errs...)
}

// Addr — адрес для http.Server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
