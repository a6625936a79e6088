package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/internal/auth"
	"github.com/bookbazaar/bazaar/internal/config"
	"github.com/bookbazaar/bazaar/internal/logging"
	"github.com/bookbazaar/bazaar/internal/market"
	"github.com/bookbazaar/bazaar/internal/outbox"
	"github.com/bookbazaar/bazaar/internal/tui"
	"github.com/bookbazaar/bazaar/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd launches the marketplace TUI.
var rootCmd = &cobra.Command{
	Use:   "bazaar",
	Short: "bazaar - buy, sell and swap used books from the terminal",
	Long: `bazaar is a terminal client for the BookBazaar marketplace.

Run without arguments to browse listings, sell books, place orders and
manage your dashboard in the interactive UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bazaar version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "bazaar "+version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $BAZAAR_HOME/config.yaml or ~/.bazaar/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	registerAuthCommands(rootCmd)
	registerMarketCommands(rootCmd)
	registerConfigCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the file logger.
func setup() error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	l, err := logging.New(c.Logging.Level, c.LogPath())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = c
	logger = l
	logger.Debug("config loaded", zap.String("path", configPath), zap.String("backend", c.Backend.URL))
	return nil
}

// services is everything a command needs to talk to the backend.
type services struct {
	client *client.Client
	auth   *auth.Service
	market *market.Service
	outbox *outbox.Store
}

func (s *services) Close() error {
	return s.outbox.Close()
}

func newServices() (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w; edit %s or run `bazaar config init`", err, configPath)
	}
	c := client.New(cfg.Backend.URL, cfg.Backend.AnonKey).WithTimeout(cfg.GetTimeout())
	ob, err := outbox.Open(cfg.OutboxPath())
	if err != nil {
		return nil, err
	}
	store := auth.NewStore(cfg.SessionPath(), logger)
	return &services{
		client: c,
		auth:   auth.NewService(c, store, logger),
		market: market.NewService(c, ob, logger, market.Options{
			NotifyAttempts: cfg.GetNotifyAttempts(),
			NotifyBackoff:  cfg.GetNotifyBackoff(),
		}),
		outbox: ob,
	}, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	logger.Info("starting tui", zap.String("version", version))
	app := tui.NewApp(svc.market, svc.auth)
	p := tea.NewProgram(app, tea.WithAltScreen())
	final, err := p.Run()
	if a, ok := final.(tui.App); ok {
		a.Close()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
