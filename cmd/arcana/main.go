// Command arcana is the terminal tarot client.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/browser"
	"github.com/naveenspark/arcana/internal/catalog"
	"github.com/naveenspark/arcana/internal/clock"
	"github.com/naveenspark/arcana/internal/config"
	"github.com/naveenspark/arcana/internal/engine"
	"github.com/naveenspark/arcana/internal/history"
	"github.com/naveenspark/arcana/internal/logging"
	"github.com/naveenspark/arcana/internal/preload"
	"github.com/naveenspark/arcana/internal/session"
	"github.com/naveenspark/arcana/internal/storage"
	"github.com/naveenspark/arcana/internal/terms"
	"github.com/naveenspark/arcana/internal/tui"
	"github.com/naveenspark/arcana/pkg/client"
	"github.com/naveenspark/arcana/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "arcana",
		Short:         "Tarot readings in your terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()
			if env.api.Token() == "" {
				printGreeting(cmd.OutOrStdout())
				return nil
			}
			// Only a 401 sends the user back to login; transient errors still
			// open the board, which validates again on its own.
			if _, err := env.api.ValidateSession(cmd.Context()); client.IsStatus(err, 401) {
				printGreeting(cmd.OutOrStdout())
				return nil
			}
			return env.runTUI()
		},
	}
	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newLegalCmd("terms", "Open the Terms of Service"),
		newLegalCmd("privacy", "Open the Privacy Policy"),
		newBuyCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

// appEnv holds what every command shares: config, log file, API client and
// local storage.
type appEnv struct {
	cfg  config.Config
	log  *zap.Logger
	api  *client.Client
	kv   storage.Store
	hist *history.Store
}

func setup() (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.NewFile(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	kv, err := storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		log.Sync() //nolint:errcheck
		return nil, err
	}
	return &appEnv{
		cfg:  cfg,
		log:  log,
		api:  newClient(cfg, cfg.ReadToken()),
		kv:   kv,
		hist: history.New(kv, log),
	}, nil
}

func newClient(cfg config.Config, token string) *client.Client {
	cache := client.NewCache(cfg.CacheMB, int(cfg.CacheTTL.Seconds()))
	return client.New(cfg.APIURL, token, client.WithCache(cache))
}

// Close releases storage and flushes the log.
func (e *appEnv) Close() {
	if err := e.kv.Close(); err != nil {
		e.log.Warn("close storage", zap.Error(err))
	}
	e.log.Sync() //nolint:errcheck
}

func (e *appEnv) preloader() *preload.Preloader {
	opts := []preload.Option{
		preload.WithWorkers(e.cfg.PreloadWorkers),
		preload.WithTimeout(e.cfg.PreloadTimeout),
		preload.WithLogger(e.log),
	}
	if e.cfg.PreloadStrict {
		opts = append(opts, preload.SurfaceErrors())
	}
	return preload.New(opts...)
}

// runTUI wires the board to the backend and runs it until the user quits.
// Pending reveals are flushed on exit so a finished deal still lands in history.
func (e *appEnv) runTUI() error {
	cat := catalog.New(e.api)
	eng := engine.New(cat, e.api, e.hist, engine.WithLogger(e.log))
	val := session.New(e.api, e.log)
	coord := terms.New(e.api, val, e.cfg.TermsVersion, e.log)
	coord.Follow(val)

	app := tui.NewApp(tui.Deps{
		Catalog:   cat,
		Engine:    eng,
		History:   e.hist,
		Session:   val,
		Terms:     coord,
		Preloader: e.preloader(),
		Clock:     clock.Real{},
		Log:       e.log,
		APIURL:    e.cfg.APIURL,
		SiteURL:   e.cfg.SiteURL,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Listeners can fire inside Update, where a blocking Send would deadlock.
	val.Subscribe(func(s domain.SessionSnapshot) { go p.Send(tui.SessionChangedMsg{Snapshot: s}) })
	coord.Subscribe(func(show bool) { go p.Send(tui.TermsVisibilityMsg{Show: show}) })

	_, runErr := p.Run()
	if err := eng.Close(); err != nil {
		e.log.Warn("flush board on exit", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("tui error: %w", runErr)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear your session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			removed, err := cfg.RemoveToken()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintln(out, "Already logged out.") //nolint:errcheck
			} else {
				fmt.Fprintln(out, "Logged out.") //nolint:errcheck
			}
			if cfg.Token != "" {
				fmt.Fprintln(out, "ARCANA_TOKEN is still set in your environment.") //nolint:errcheck
			}
			return nil
		},
	}
}

func newLegalCmd(page, short string) *cobra.Command {
	return &cobra.Command{
		Use:   page,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			url := cfg.SiteURL + "/" + page
			if err := browser.Open(url); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), url) //nolint:errcheck
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "arcana "+version) //nolint:errcheck
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List saved readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()
			now := time.Now()
			entries, err := env.hist.OpenView(context.Background(), now)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries, now)
			return nil
		},
	}
}
