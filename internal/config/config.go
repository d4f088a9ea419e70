package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval    = time.Second
	DefaultSignalsPath = "signals.json"
	DefaultDatasetPath = "dataset.csv"
	DefaultAdvicePath  = "advice.json"
	DefaultPIDFile     = "driveassist.pid"
	DefaultLogLevel    = "info"
	DefaultHistoryDB   = "history.db"
	DefaultListenAddr  = ":5000"
	DefaultEnvPrefix   = "DRIVEASSIST"

	configName = "driveassist"
	configType = "toml"
)

type Config struct {
	Interval      time.Duration `mapstructure:"interval"`
	SignalsPath   string        `mapstructure:"signals_path"`
	DatasetPath   string        `mapstructure:"dataset_path"`
	AdvicePath    string        `mapstructure:"advice_path"`
	PIDFile       string        `mapstructure:"pid_file"`
	StrictSignals bool          `mapstructure:"strict_signals"`
	LogLevel      string        `mapstructure:"log_level"`

	History HistoryConfig `mapstructure:"history"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Serve   ServeConfig   `mapstructure:"serve"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HistoryConfig controls the SQLite sample mirror.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// RedisConfig is disabled while Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Channel  string `mapstructure:"channel"`
}

// KafkaConfig is disabled while Brokers is empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MQTTConfig is disabled while Broker is empty.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

type ServeConfig struct {
	Listen string `mapstructure:"listen"`
}

// MetricsConfig exposes Prometheus metrics from the loop process while
// Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Option defines a configuration option that can be passed to Load
type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
	dotEnvPath string
	flags      *pflag.FlagSet
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix.
// Default is "DRIVEASSIST"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithDotEnv loads variables from path before reading the environment.
// A missing file is not an error.
func WithDotEnv(path string) Option {
	return func(o *options) {
		o.dotEnvPath = path
	}
}

// WithFlags binds command line flags registered by RegisterFlags.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) {
		o.flags = fs
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"interval":       "interval",
	"signals":        "signals_path",
	"dataset":        "dataset_path",
	"advice":         "advice_path",
	"pid-file":       "pid_file",
	"strict-signals": "strict_signals",
	"log-level":      "log_level",
	"history":        "history.enabled",
	"history-db":     "history.db_path",
	"listen":         "serve.listen",
	"metrics-listen": "metrics.listen",
}

// RegisterFlags defines the command line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Duration("interval", DefaultInterval, "Interval between cycles")
	fs.String("signals", DefaultSignalsPath, "Path of the telemetry snapshot written by the vehicle")
	fs.String("dataset", DefaultDatasetPath, "Path of the labeled CSV dataset")
	fs.String("advice", DefaultAdvicePath, "Path of the published advisory payload")
	fs.String("pid-file", DefaultPIDFile, "PID file guarding the dataset against a second writer")
	fs.Bool("strict-signals", false, "Treat missing telemetry fields as read errors")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.Bool("history", false, "Mirror samples into the SQLite history database")
	fs.String("history-db", DefaultHistoryDB, "Path of the SQLite history database")
	fs.String("listen", DefaultListenAddr, "Listen address for the HTTP façade")
	fs.String("metrics-listen", "", "Listen address for Prometheus metrics of the loop (disabled when empty)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("signals_path", DefaultSignalsPath)
	v.SetDefault("dataset_path", DefaultDatasetPath)
	v.SetDefault("advice_path", DefaultAdvicePath)
	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("strict_signals", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", DefaultHistoryDB)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "driveassist:advice")
	v.SetDefault("redis.channel", "driveassist:advice")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "driveassist.samples")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "driveassist/advice")
	v.SetDefault("mqtt.client_id", "driveassist")
	v.SetDefault("serve.listen", DefaultListenAddr)
	v.SetDefault("metrics.listen", "")
}

// Load builds the configuration from defaults, config file, environment and
// flags, in increasing order of precedence, and validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(o)
	}

	if o.dotEnvPath != "" {
		if err := godotenv.Load(o.dotEnvPath); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.flags != nil {
		for name, key := range flagKeys {
			f := o.flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	configPath := o.configPath
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/driveassist")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.WithMessage(errors.ErrReadConfig,
				fmt.Sprintf("Failed to read config file: %v", err))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration can be used to start a loop.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, newValidationError("interval", c.Interval, "must be positive"))
	}

	paths := []struct {
		field, value string
	}{
		{"signals_path", c.SignalsPath},
		{"dataset_path", c.DatasetPath},
		{"advice_path", c.AdvicePath},
	}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			return errFactory.WithData(errors.ErrInvalidPath, newValidationError(p.field, p.value, "must not be empty"))
		}
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errFactory.WithData(errors.ErrInvalidLogLevel, newValidationError("log_level", c.LogLevel, "unknown level"))
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidPath, newValidationError("history.db_path", "", "required when history is enabled"))
	}

	if c.Redis.Addr != "" && c.Redis.Key == "" && c.Redis.Channel == "" {
		return errFactory.WithData(errors.ErrConfig, newValidationError("redis.key", "", "key or channel required"))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errFactory.WithData(errors.ErrConfig, newValidationError("kafka.topic", "", "required when brokers are set"))
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errFactory.WithData(errors.ErrConfig, newValidationError("mqtt.topic", "", "required when broker is set"))
	}

	return nil
}

// ValidationError describes a single invalid field
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func newValidationError(field string, value interface{}, reason string) ValidationError {
	return ValidationError{Field: field, Value: value, Reason: reason}
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}
