package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	GPIOLine        int           `toml:"gpio.line" env:"GPIO_LINE"`
	GPIORoot        string        `toml:"gpio.root" env:"GPIO_ROOT"`
	GPIOExportDelay time.Duration `toml:"gpio.export_delay" env:"GPIO_EXPORT_DELAY"`
	GPIOStrictRead  bool          `toml:"gpio.strict_read" env:"GPIO_STRICT_READ"`
	Streams         []string      `toml:"tally.streams" env:"TALLY_STREAMS"`
	LoggingLevel    string        `toml:"logging.level" env:"LOGGING_LEVEL"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
[gpio]
line = 26
root = "/tmp/gpio"
export_delay = "250ms"
strict_read = true

[tally]
streams = ["cam1", "cam2"]

[logging]
level = "debug"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, sampleConfig), GPIOLine: 597}

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if opts.GPIOLine != 26 {
		t.Errorf("GPIOLine = %d, want 26", opts.GPIOLine)
	}
	if opts.GPIORoot != "/tmp/gpio" {
		t.Errorf("GPIORoot = %q", opts.GPIORoot)
	}
	if opts.GPIOExportDelay != 250*time.Millisecond {
		t.Errorf("GPIOExportDelay = %v, want 250ms", opts.GPIOExportDelay)
	}
	if !opts.GPIOStrictRead {
		t.Error("GPIOStrictRead = false, want true")
	}
	if !reflect.DeepEqual(opts.Streams, []string{"cam1", "cam2"}) {
		t.Errorf("Streams = %v", opts.Streams)
	}
	if opts.LoggingLevel != "debug" {
		t.Errorf("LoggingLevel = %q", opts.LoggingLevel)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("TALLY_GPIO_LINE", "17")
	t.Setenv("TALLY_GPIO_EXPORT_DELAY", "0")
	t.Setenv("TALLY_TALLY_STREAMS", " a , b ")

	opts := &testOptions{Config: writeConfig(t, sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if opts.GPIOLine != 17 {
		t.Errorf("GPIOLine = %d, want 17 from env", opts.GPIOLine)
	}
	if opts.GPIOExportDelay != 0 {
		t.Errorf("GPIOExportDelay = %v, want 0 from env", opts.GPIOExportDelay)
	}
	if !reflect.DeepEqual(opts.Streams, []string{"a", "b"}) {
		t.Errorf("Streams = %v", opts.Streams)
	}
	if opts.GPIORoot != "/tmp/gpio" {
		t.Errorf("GPIORoot = %q, want TOML value", opts.GPIORoot)
	}
}

func TestLoadConfigCLIFlagWins(t *testing.T) {
	t.Setenv("TALLY_GPIO_LINE", "17")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("gpio-line", 597, "")
	if err := cmd.Flags().Set("gpio-line", "5"); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: writeConfig(t, sampleConfig), GPIOLine: 5}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if opts.GPIOLine != 5 {
		t.Errorf("GPIOLine = %d, want 5 from CLI", opts.GPIOLine)
	}
	if opts.GPIORoot != "/tmp/gpio" {
		t.Errorf("GPIORoot = %q, unchanged flags should still load from TOML", opts.GPIORoot)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "nope.toml"), GPIOLine: 597}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() should ignore a missing file: %v", err)
	}
	if opts.GPIOLine != 597 {
		t.Errorf("GPIOLine = %d, want default 597", opts.GPIOLine)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, "[gpio\nline = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig() should fail for invalid TOML")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("LoadConfig() should reject a non-pointer")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":            "port",
		"GPIOLine":        "gpio-line",
		"GPIOExportDelay": "gpio-export-delay",
		"LoggingLevel":    "logging-level",
		"AuthUsername":    "auth-username",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"gpio": map[string]any{"line": int64(597)},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"gpio.line", int64(597)},
		{"gpio.missing", nil},
		{"missing.line", nil},
		{"root.line", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValueDurations(t *testing.T) {
	var s struct{ Delay time.Duration }
	field := reflect.ValueOf(&s).Elem().Field(0)

	setFieldValue(field, "1s")
	if s.Delay != time.Second {
		t.Errorf("from string: %v", s.Delay)
	}
	setFieldValue(field, int64(100))
	if s.Delay != 100*time.Millisecond {
		t.Errorf("from int: %v", s.Delay)
	}
	setFieldValueFromString(field, "75ms")
	if s.Delay != 75*time.Millisecond {
		t.Errorf("from env duration: %v", s.Delay)
	}
	setFieldValueFromString(field, "20")
	if s.Delay != 20*time.Millisecond {
		t.Errorf("from env millis: %v", s.Delay)
	}
	setFieldValueFromString(field, "soon")
	if s.Delay != 20*time.Millisecond {
		t.Errorf("invalid value changed the field: %v", s.Delay)
	}
}
