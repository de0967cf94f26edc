package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symphony/internal/api"
	"symphony/internal/blob"
	"symphony/internal/config"
	"symphony/internal/datasource"
	"symphony/internal/field"
	"symphony/internal/logging"
	"symphony/internal/section"
	"symphony/internal/store"
)

// version подставляется при сборке (-ldflags "-X main.version=...").
var version = "dev"

// app — то, что общие флаги дают подкомандам.
type app struct {
	cfg config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "symphony",
		Short:         "Symphony CMS content API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load("", cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if cfg.Version == "dev" {
				cfg.Version = version
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogDev)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		// без подкоманды — сервер
		RunE: func(cmd *cobra.Command, _ []string) error { return a.serve(cmd.Context()) },
	}
	config.Flags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create core tables and sync sections into the database",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.migrate(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "sections",
			Short: "List sections from the sections directory and lint them",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.sections(cmd) },
		},
		&cobra.Command{
			Use:   "datasources",
			Short: "List generated datasources",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.datasources(cmd) },
		},
	)
	return root
}

// open — база, хранилище и менеджер полей.
func (a *app) open(ctx context.Context) (*sql.DB, *store.Store, error) {
	db, d, err := store.Open(ctx, a.cfg.DBDriver, a.cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db, d, a.cfg.TablePrefix, field.DefaultManager(), a.log)
	a.log.Info("database opened", zap.String("driver", a.cfg.DBDriver))
	return db, st, nil
}

// loadSections читает секции и отказывает при блокирующих проблемах.
func (a *app) loadSections(types []string) ([]*section.Section, error) {
	sections, err := section.LoadAll(a.cfg.SectionsDir)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	if issues := section.Lint(sections, types); len(issues) > 0 {
		for _, it := range issues {
			a.log.Error("section issue",
				zap.String("section", it.Section),
				zap.String("field", it.Field),
				zap.String("code", it.Code),
				zap.String("message", it.Message))
		}
		return nil, fmt.Errorf("sections have %d blocking issue(s)", len(issues))
	}
	return sections, nil
}

func (a *app) sync(ctx context.Context, st *store.Store) ([]*section.Section, error) {
	sections, err := a.loadSections(st.Fields.Types())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}
	if err := st.SyncSections(ctx, sections); err != nil {
		return nil, err
	}
	a.log.Info("sections synced", zap.Int("sections", len(sections)))
	return sections, nil
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, st, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var sections []*section.Section
	if a.cfg.AutoMigrate {
		if sections, err = a.sync(ctx, st); err != nil {
			return err
		}
	} else if sections, err = a.loadSections(st.Fields.Types()); err != nil {
		return err
	}
	if a.cfg.AuthorToken == "" {
		a.log.Warn("author token is not set, author endpoints are disabled")
	}

	srv := api.NewServer(a.cfg, a.log, st,
		section.NewCatalog(sections),
		datasource.NewRepository(a.cfg.DatasourcesDir),
		blob.NewLocal(a.cfg.FilesRoot))
	return srv.Run(ctx, a.cfg.Addr())
}

func (a *app) migrate(ctx context.Context) error {
	db, st, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = a.sync(ctx, st)
	return err
}

func (a *app) sections(cmd *cobra.Command) error {
	types := field.DefaultManager().Types()
	sections, err := section.LoadAll(a.cfg.SectionsDir)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Handle", "Name", "Fields", "Filter", "Sort"})
	for _, s := range sections {
		names := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			names = append(names, f.ElementName+":"+f.Type)
		}
		sort := s.SortField
		if sort != "" && s.SortOrder != "" {
			sort += " " + s.SortOrder
		}
		t.AppendRow(table.Row{s.Handle, s.Name, strings.Join(names, ", "), string(s.Filter), sort})
	}
	t.Render()

	issues := section.Lint(sections, types)
	if len(issues) == 0 {
		return nil
	}
	it := table.NewWriter()
	it.SetOutputMirror(cmd.ErrOrStderr())
	it.SetStyle(table.StyleLight)
	it.AppendHeader(table.Row{"Section", "Field", "Code", "Message"})
	for _, is := range issues {
		it.AppendRow(table.Row{is.Section, is.Field, is.Code, is.Message})
	}
	it.Render()
	return errors.New("sections have blocking issues")
}

func (a *app) datasources(cmd *cobra.Command) error {
	defs, err := datasource.NewRepository(a.cfg.DatasourcesDir).List()
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Handle", "Name", "Source", "Root", "Dependencies"})
	for _, d := range defs {
		t.AppendRow(table.Row{d.Handle, d.About.Name, d.Source, d.RootElement, strings.Join(d.Dependencies, ", ")})
	}
	t.Render()
	return nil
}
