// Package cmd holds the one-shot subcommands of the tally binary.
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/tally/internal/gpio"
	"github.com/smazurov/tally/internal/logging"
	"github.com/spf13/cobra"
)

// DefaultLine is the GPIO the tally lamp is wired to on the reference board.
const DefaultLine = 597

type gpioFlags struct {
	line        int
	root        string
	exportDelay time.Duration
	watchReady  bool
	strictRead  bool
	logLevel    string
	fs          gpio.FS
}

func (f *gpioFlags) open() (*gpio.Line, error) {
	logging.Initialize(logging.Config{Level: f.logLevel, Format: "text"})
	opts := []gpio.Option{gpio.WithExportDelay(f.exportDelay)}
	if f.fs != nil {
		opts = append(opts, gpio.WithFS(f.fs))
	}
	return gpio.New(gpio.Config{
		Number:     f.line,
		Root:       f.root,
		WatchReady: f.watchReady,
		StrictRead: f.strictRead,
	}, opts...)
}

// openReady opens the line and runs Init. Each invocation is a fresh
// process, so the line has to be claimed again before it can be driven.
func (f *gpioFlags) openReady() (*gpio.Line, error) {
	line, err := f.open()
	if err != nil {
		return nil, err
	}
	if err := line.Init(); err != nil {
		return nil, err
	}
	return line, nil
}

// openAttached takes over an exported line without rewriting its direction,
// which would reset the level a previous invocation set. A line that is
// not exported yet is claimed with Init instead.
func (f *gpioFlags) openAttached() (*gpio.Line, error) {
	line, err := f.open()
	if err != nil {
		return nil, err
	}
	err = line.Attach()
	switch {
	case err == nil:
		return line, nil
	case errors.Is(err, gpio.ErrNotExported):
		if err := line.Init(); err != nil {
			return nil, err
		}
		return line, nil
	default:
		return nil, err
	}
}

// CreateGPIOCmd creates the gpio command group. None of the subcommands
// unexport the line except cleanup.
func CreateGPIOCmd() *cobra.Command {
	return newGPIOCmd(nil)
}

// newGPIOCmd builds the command group on fsys, or the real filesystem when
// fsys is nil.
func newGPIOCmd(fsys gpio.FS) *cobra.Command {
	flags := &gpioFlags{fs: fsys}

	cmd := &cobra.Command{
		Use:   "gpio",
		Short: "Drive the tally GPIO line directly",
		Long: `One-shot access to the sysfs GPIO line, without the daemon. ` +
			`init and set claim the line as an output, which resets it low before set drives it. ` +
			`get and toggle reuse an exported line as is, so they see the level left by a previous set.`,
	}

	pf := cmd.PersistentFlags()
	pf.IntVar(&flags.line, "line", DefaultLine, "Kernel GPIO number")
	pf.StringVar(&flags.root, "root", gpio.DefaultRoot, "sysfs GPIO class directory")
	pf.DurationVar(&flags.exportDelay, "export-delay", gpio.DefaultExportDelay, "Wait after export before configuring direction")
	pf.BoolVar(&flags.watchReady, "watch-ready", false, "Return from the export wait as soon as the line appears")
	pf.BoolVar(&flags.strictRead, "strict-read", false, "Fail when the value file yields no data")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Export the line and configure it as an output",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				line, err := flags.openReady()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%s ready\n", line)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <0|1|on|off|true|false>",
			Short:     "Drive the line low or high",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"0", "1", "on", "off", "true", "false", "high", "low"},
			RunE: func(c *cobra.Command, args []string) error {
				value, err := ParseLevel(args[0])
				if err != nil {
					return err
				}
				line, err := flags.openReady()
				if err != nil {
					return err
				}
				if err := line.SetValue(value); err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), levelString(value))
				return nil
			},
		},
		&cobra.Command{
			Use:   "get",
			Short: "Print the current level as 0 or 1",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				line, err := flags.openAttached()
				if err != nil {
					return err
				}
				value, err := line.Value()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), levelString(value))
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Invert the current level and print the new one",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				line, err := flags.openAttached()
				if err != nil {
					return err
				}
				value, err := line.Toggle()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), levelString(value))
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Unexport the line",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				line, err := flags.open()
				if err != nil {
					return err
				}
				line.Cleanup()
				fmt.Fprintf(c.OutOrStdout(), "%s released\n", line)
				return nil
			},
		},
	)

	return cmd
}

// ParseLevel accepts 0/1, on/off, true/false and high/low, case-insensitively.
func ParseLevel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true", "high":
		return true, nil
	case "0", "off", "false", "low":
		return false, nil
	default:
		return false, fmt.Errorf("invalid level %q: want 0, 1, on, off, true, false, high or low", s)
	}
}

func levelString(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
