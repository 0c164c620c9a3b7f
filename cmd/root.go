package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/mqttdesk/internal/app"
	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/config"
	"github.com/zjrosen/mqttdesk/internal/coordinator"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
	"github.com/zjrosen/mqttdesk/internal/pubsub"
	"github.com/zjrosen/mqttdesk/internal/store"
	"github.com/zjrosen/mqttdesk/internal/tracing"
	"github.com/zjrosen/mqttdesk/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts, so the OSC 11 response does not race
	// with the input loop.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const (
	envPrefix        = "MQTTDESK"
	localConfigPath  = ".mqttdesk/config.yaml"
	shutdownDeadline = 5 * time.Second
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
	// cfgErr is set by initConfig, which cobra gives no way to fail.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:     "mqttdesk",
	Short:   "A terminal MQTT v5 client",
	Long:    `A terminal user interface for connecting to MQTT v5 brokers, subscribing to topics and publishing messages.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/mqttdesk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also MQTTDESK_DEBUG)")
	rootCmd.PersistentFlags().String("store", "",
		"path to the broker store (overrides store.path)")
	rootCmd.PersistentFlags().String("backend", "",
		"store backend: sqlite or bolt (overrides store.backend)")

	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .mqttdesk/config.yaml (current directory)
		// 2. ~/.config/mqttdesk/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
		} else {
			v.AddConfigPath(config.DefaultDir())
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
		// No config file found anywhere: create the user default.
		defaultPath := filepath.Join(config.DefaultDir(), "config.yaml")
		if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
			v.SetConfigFile(defaultPath)
			_ = v.ReadInConfig()
		}
		// If write fails, just continue with defaults (no config file)
	}

	cfg, cfgErr = config.Load(v)
}

func debugEnabled() bool {
	return debugFlag || os.Getenv(envPrefix+"_DEBUG") != ""
}

// initLogging opens the log file when --debug is set or a path is
// configured. Otherwise warnings and errors are still published to the
// in-app log pane but written nowhere.
func initLogging(c config.Config, debug bool) (func(), error) {
	level := log.ParseLevel(c.Log.Level)
	path := c.Log.Path
	if debug {
		level = log.LevelDebug
		if path == "" {
			path = config.DefaultLogPath()
		}
	}
	if path == "" {
		return log.InitWriter(io.Discard, max(level, log.LevelWarn)), nil
	}
	return log.Init(path, level)
}

// loadTheme re-reads the theme from the config file after an external edit.
func loadTheme(path string) func() (string, error) {
	return func() (string, error) {
		v := viper.New()
		config.SetDefaults(v)
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		c, err := config.Load(v)
		if err != nil {
			return "", err
		}
		return c.Theme, nil
	}
}

func openStore(ctx context.Context, c config.Config) (*store.Store, *store.LoadResult, error) {
	path := c.StorePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.Open(c.Store.Backend, path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	loaded, err := st.Load(ctx)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("loading store %s: %w", path, err)
	}
	return st, loaded, nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	debug := debugEnabled()
	closeLog, err := initLogging(cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info(log.CatConfig, "mqttdesk starting", "version", version, "debug", debug)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, loaded, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == tracing.ExporterFile && cfg.Tracing.FilePath == "" {
		cfg.Tracing.FilePath = config.DefaultTracesFilePath()
	}
	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown", err)
		}
	}()

	// Store the config file path for saving theme changes
	configFilePath := viper.ConfigFileUsed()
	var configChanged <-chan struct{}
	if configFilePath != "" {
		w, err := watcher.New(watcher.DefaultConfig(configFilePath))
		if err != nil {
			return fmt.Errorf("creating config watcher: %w", err)
		}
		configChanged, err = w.Start()
		if err != nil {
			log.ErrorErr(log.CatWatcher, "watching config", err, "path", configFilePath)
		}
		defer func() { _ = w.Stop() }()
	}

	queue := intent.NewQueue()
	registry := mqtt.NewRegistry(mqtt.PahoDialer{}, cfg.MQTTOptions())

	zone.NewGlobal()
	model := app.New(app.Config{
		Submitter:     queue,
		Data:          appdata.FromStore(loaded.Brokers, loaded.Histories),
		ConfigPath:    configFilePath,
		Theme:         cfg.Theme,
		Debug:         debug,
		ShowLog:       cfg.UI.ShowLog,
		ConfigChanged: configChanged,
		LoadTheme:     loadTheme(configFilePath),
		LogListener:   log.NewListener(ctx),
		StoreChanges:  pubsub.NewContinuousListener[store.Change](ctx, st),
	})
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	coord := coordinator.New(queue, registry, st, app.NewScheduler(p),
		coordinator.WithDoubleClickWindow(cfg.UI.DoubleClickWindow),
		coordinator.WithMiddleware(tracing.NewIntentMiddleware(tp.Tracer())),
	)
	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx) }()

	_, err = p.Run()

	// Closing the queue lets the coordinator drain and disconnect sessions.
	queue.Close()
	if coordErr := <-coordDone; coordErr != nil && err == nil {
		err = coordErr
	}
	processed, failed := coord.Stats()
	log.Info(log.CatCoord, "mqttdesk exiting", "processed", processed, "failed", failed)

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
