// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iMithrellas/mqcast/internal/mq"
)

const envPrefix = "MQCAST"

// Producer modes.
const (
	ModeTicker      = "ticker"
	ModeStdin       = "stdin"
	ModeInteractive = "interactive"
	ModeWatch       = "watch"
)

// Config is the resolved daemon configuration.
type Config struct {
	URL            string
	Confirm        bool
	Mode           string
	Topic          string
	Interval       time.Duration
	Heartbeat      time.Duration
	IdleWait       time.Duration
	SendBuffer     int
	ScratchBuffer  int
	MaxSendRetries uint64
	CPUCore        int
	WatchURL       string
}

// fileConfig is the on-disk layout written by GenerateConfig.
type fileConfig struct {
	URL            string `toml:"url"`
	Confirm        bool   `toml:"confirm"`
	Mode           string `toml:"mode"`
	Topic          string `toml:"topic"`
	Interval       string `toml:"interval"`
	Heartbeat      string `toml:"heartbeat"`
	IdleWait       string `toml:"idle_wait"`
	SendBuffer     string `toml:"send_buffer"`
	ScratchBuffer  string `toml:"scratch_buffer"`
	MaxSendRetries uint64 `toml:"max_send_retries"`
	CPUCore        int    `toml:"cpu_core"`
	WatchURL       string `toml:"watch_url"`
}

func defaults() fileConfig {
	return fileConfig{
		URL:            "tcp://127.0.0.1:5555",
		Confirm:        false,
		Mode:           ModeTicker,
		Topic:          "tick",
		Interval:       "1s",
		Heartbeat:      mq.DefaultHeartbeatInterval.String(),
		IdleWait:       mq.DefaultIdleWait.String(),
		SendBuffer:     "8MB",
		ScratchBuffer:  "1MB",
		MaxSendRetries: 0,
		CPUCore:        -1,
		WatchURL:       "tcp://127.0.0.1:5555",
	}
}

func setDefaults() {
	d := defaults()
	viper.SetDefault("url", d.URL)
	viper.SetDefault("confirm", d.Confirm)
	viper.SetDefault("mode", d.Mode)
	viper.SetDefault("topic", d.Topic)
	viper.SetDefault("interval", d.Interval)
	viper.SetDefault("heartbeat", d.Heartbeat)
	viper.SetDefault("idle_wait", d.IdleWait)
	viper.SetDefault("send_buffer", d.SendBuffer)
	viper.SetDefault("scratch_buffer", d.ScratchBuffer)
	viper.SetDefault("max_send_retries", d.MaxSendRetries)
	viper.SetDefault("cpu_core", d.CPUCore)
	viper.SetDefault("watch_url", d.WatchURL)
}

func BindFlags() {
	pflag.String("url", "", "Endpoint to bind (tcp://, ipc://, inproc://, ws://)")
	pflag.BoolP("confirm", "c", false, "Hold messages until a subscriber is attached")
	pflag.StringP("mode", "m", "", "Producer mode: ticker, stdin, interactive or watch")
	pflag.StringP("topic", "t", "", "Topic to publish under or to watch")
	pflag.Duration("interval", 0, "Ticker publish interval (e.g., 500ms)")
	pflag.Duration("heartbeat", 0, "Idle time before a heartbeat is sent")
	pflag.Duration("idle_wait", 0, "Dispatch sleep when there is nothing to send")
	pflag.String("send_buffer", "", "Transport send buffer (e.g., 8MB)")
	pflag.String("scratch_buffer", "", "Initial framing buffer (e.g., 1MB)")
	pflag.Uint64("max_send_retries", 0, "Drop a packet after this many failed sends (0 retries forever)")
	pflag.Int("cpu_core", -1, "Pin the dispatch thread to this core (-1 disables)")
	pflag.String("watch_url", "", "Endpoint to subscribe to in watch mode")

	pflag.Parse()

	pflag.Visit(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
}

// SetupEnvironment loads a .env file when present and lets MQCAST_* variables
// override file values.
func SetupEnvironment() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return nil
}

func LoadConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	setDefaults()
	viper.SetConfigFile(path)
	viper.SetConfigType("toml")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := SetupEnvironment(); err != nil {
		return err
	}
	BindFlags()

	return nil
}

func GenerateConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking config file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := toml.Marshal(defaults())
	if err != nil {
		return fmt.Errorf("error encoding config file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Resolve reads the merged file, environment and flag values.
func Resolve() (Config, error) {
	sendBuf, err := parseSize("send_buffer")
	if err != nil {
		return Config{}, err
	}
	scratch, err := parseSize("scratch_buffer")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		URL:            viper.GetString("url"),
		Confirm:        viper.GetBool("confirm"),
		Mode:           viper.GetString("mode"),
		Topic:          viper.GetString("topic"),
		Interval:       viper.GetDuration("interval"),
		Heartbeat:      viper.GetDuration("heartbeat"),
		IdleWait:       viper.GetDuration("idle_wait"),
		SendBuffer:     sendBuf,
		ScratchBuffer:  scratch,
		MaxSendRetries: viper.GetUint64("max_send_retries"),
		CPUCore:        viper.GetInt("cpu_core"),
		WatchURL:       viper.GetString("watch_url"),
	}

	switch cfg.Mode {
	case ModeTicker, ModeStdin, ModeInteractive, ModeWatch:
	default:
		return Config{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeTicker && cfg.Interval <= 0 {
		return Config{}, fmt.Errorf("ticker interval must be positive, got %s", cfg.Interval)
	}
	return cfg, nil
}

func parseSize(key string) (int, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(viper.GetString(key))); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, viper.GetString(key), err)
	}
	return int(size.Bytes()), nil
}

// ServerOptions maps the configuration onto publisher options. Zero values
// keep the publisher defaults.
func (c Config) ServerOptions() []mq.Option {
	return []mq.Option{
		mq.WithHeartbeatInterval(c.Heartbeat),
		mq.WithIdleWait(c.IdleWait),
		mq.WithSendBuffer(c.SendBuffer),
		mq.WithBufferSize(c.ScratchBuffer),
		mq.WithMaxSendRetries(c.MaxSendRetries),
		mq.WithCPUCore(c.CPUCore),
	}
}
