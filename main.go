package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/tally/cmd"
	"github.com/smazurov/tally/internal/api"
	"github.com/smazurov/tally/internal/config"
	"github.com/smazurov/tally/internal/events"
	"github.com/smazurov/tally/internal/gpio"
	"github.com/smazurov/tally/internal/logging"
	"github.com/smazurov/tally/internal/tally"
	"github.com/smazurov/tally/internal/version"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// GPIO settings
	GPIOLine          int    `help:"Kernel GPIO number of the tally line" default:"597" toml:"gpio.line" env:"GPIO_LINE"`
	GPIORoot          string `help:"sysfs GPIO class directory" default:"/sys/class/gpio" toml:"gpio.root" env:"GPIO_ROOT"`
	GPIOExportDelayMs int    `help:"Wait after export before configuring direction, in milliseconds" default:"100" toml:"gpio.export_delay_ms" env:"GPIO_EXPORT_DELAY_MS"`
	GPIOWatchReady    bool   `help:"Stop waiting as soon as the exported line appears" default:"false" toml:"gpio.watch_ready" env:"GPIO_WATCH_READY"`
	GPIOStrictRead    bool   `help:"Fail reads that return no data" default:"false" toml:"gpio.strict_read" env:"GPIO_STRICT_READ"`
	GPIOActiveLow     bool   `help:"Drive the line low when the tally is on" default:"false" toml:"gpio.active_low" env:"GPIO_ACTIVE_LOW"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, disabled unless both are set
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingGPIO   string `help:"GPIO logging level" default:"info" toml:"logging.gpio" env:"LOGGING_GPIO"`
	LoggingTally  string `help:"Tally manager logging level" default:"info" toml:"logging.tally" env:"LOGGING_TALLY"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP   string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"gpio":  opts.LoggingGPIO,
			"tally": opts.LoggingTally,
			"api":   opts.LoggingAPI,
			"http":  opts.LoggingHTTP,
		},
	}
}

// reloadLoggingConfig re-reads the config file into a copy of the startup
// options, so environment variables and flags set on the command line keep
// their precedence over the file. Keys removed from the file fall back to
// the value they had at startup.
func reloadLoggingConfig(opts *Options, cmd *cobra.Command) (logging.Config, error) {
	reloaded := *opts
	if err := config.LoadConfig(&reloaded, cmd); err != nil {
		return logging.Config{}, err
	}
	return loggingConfig(&reloaded), nil
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		line, err := gpio.New(gpio.Config{
			Number:     opts.GPIOLine,
			Root:       opts.GPIORoot,
			WatchReady: opts.GPIOWatchReady,
			StrictRead: opts.GPIOStrictRead,
		}, gpio.WithExportDelay(time.Duration(opts.GPIOExportDelayMs)*time.Millisecond))
		if err != nil {
			logger.Error("Invalid GPIO configuration", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()
		tallyManager := tally.NewManager(line, eventBus, logging.GetLogger("tally"),
			tally.WithActiveLow(opts.GPIOActiveLow))

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Line:              line,
			Tally:             tallyManager,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.Handler(),
		})

		// Logging levels follow the config file without a restart.
		watcher := config.NewWatcher(opts.Config, func(string) (logging.Config, error) {
			return reloadLoggingConfig(opts, cli.Root())
		}, logging.GetLogger("config"))
		watcher.OnReload(func(cfg logging.Config) {
			logging.Initialize(cfg)
			logger.Info("Logging configuration reloaded", "level", cfg.Level)
		})

		// Only the root command runs the daemon; subcommands share the
		// parsed options but none of the hooks.
		hooks.OnStart(func() {
			logger.Info("Starting tally", "version", version.String(), "line", line.Number())

			if initErr := line.Init(); initErr != nil {
				logger.Error("Failed to initialize GPIO line", "error", initErr)
				os.Exit(1)
			}
			tallyManager.Start()

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watching disabled", "path", opts.Config, "error", watchErr)
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("systemd notify failed", "error", notifyErr)
			}

			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				tallyManager.Stop()
				line.Cleanup()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Config watcher stop", "error", stopErr)
			}

			// Leaves the lamp off before releasing the line.
			tallyManager.Stop()
			line.Cleanup()
		})
	})

	cli.Root().Use = "tally"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateGPIOCmd())

	cli.Run()
}
