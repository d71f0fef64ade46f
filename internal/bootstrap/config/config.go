package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Settings   Settings         `mapstructure:"settings"`
	WriteQueue WriteQueueConfig `mapstructure:"writequeue"`
	Server     ServerConfig     `mapstructure:"server"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig selects the shared store. For mysql either dsn or the
// host/port/name/username/password quintet is used.
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Name      string `mapstructure:"name"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	TableName string `mapstructure:"tablename"`
}

type Settings struct {
	ServerName               string           `mapstructure:"servername"`
	ReviveCooldownSeconds    int              `mapstructure:"revivecooldownseconds"`
	KeepInventory            bool             `mapstructure:"keepinventory"`
	UseHardcoreHearts        bool             `mapstructure:"usehardcorehearts"`
	MessagePrefix            string           `mapstructure:"messageprefix"`
	ReviveProcessCommands    []string         `mapstructure:"reviveprocesscommands"`
	ReviveNeed               map[string]int64 `mapstructure:"reviveneed"`
	ReminderIntervalSeconds  int              `mapstructure:"reminderintervalseconds"`
	ReminderThresholdSeconds int              `mapstructure:"reminderthresholdseconds"`
	ConfirmWindowSeconds     int              `mapstructure:"confirmwindowseconds"`
	PlaceholderOnly          bool             `mapstructure:"placeholderonly"`
}

type WriteQueueConfig struct {
	Workers            int `mapstructure:"workers"`
	Buffer             int `mapstructure:"buffer"`
	TaskTimeoutSeconds int `mapstructure:"tasktimeoutseconds"`
}

// ServerConfig controls the HTTP surface. An empty AdminToken leaves the
// mutating routes open, which only suits a loopback listener.
type ServerConfig struct {
	Addr               string   `mapstructure:"addr"`
	AdminToken         string   `mapstructure:"admintoken"`
	SessionPermissions []string `mapstructure:"sessionpermissions"`
}

type NotifyConfig struct {
	NatsURL string `mapstructure:"natsurl"`
	Subject string `mapstructure:"subject"`
}

const (
	DefaultReviveCurrency = "points"
	DefaultRevivePrice    = 100
	DefaultSQLitePath     = ".hardcore/state.sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.ReviveCooldownSeconds) * time.Second
}

func (s Settings) ReminderInterval() time.Duration {
	return time.Duration(s.ReminderIntervalSeconds) * time.Second
}

func (s Settings) ReminderThreshold() time.Duration {
	return time.Duration(s.ReminderThresholdSeconds) * time.Second
}

func (s Settings) ConfirmWindow() time.Duration {
	return time.Duration(s.ConfirmWindowSeconds) * time.Second
}

// ReviveCurrencies returns the reviveNeed keys in a stable order.
func (s Settings) ReviveCurrencies() []string {
	keys := make([]string, 0, len(s.ReviveNeed))
	for key := range s.ReviveNeed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (w WriteQueueConfig) TaskTimeout() time.Duration {
	return time.Duration(w.TaskTimeoutSeconds) * time.Second
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	// A map default would be merged key-by-key with the file's map, so the
	// fallback price is applied only when nothing was configured.
	if isSQLite(cfg.Database.Driver) && strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = DefaultSQLitePath
	}
	if len(cfg.Settings.ReviveNeed) == 0 {
		cfg.Settings.ReviveNeed = map[string]int64{DefaultReviveCurrency: DefaultRevivePrice}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("table", cfg.Database.TableName),
		slog.String("server_name", cfg.Settings.ServerName),
		slog.Int("revive_cooldown_seconds", cfg.Settings.ReviveCooldownSeconds),
	)

	return cfg, nil
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return true
	default:
		return false
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for sqlite")
		}
	case "mysql":
		if strings.TrimSpace(c.Database.DSN) == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return errors.New("database.host and database.name are required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if !tableNamePattern.MatchString(c.Database.TableName) {
		return fmt.Errorf("database.tablename %q is not a valid table name", c.Database.TableName)
	}
	if strings.TrimSpace(c.Settings.ServerName) == "" {
		return errors.New("settings.serverName is required")
	}
	if c.Settings.ReviveCooldownSeconds < 0 {
		return errors.New("settings.reviveCooldownSeconds must not be negative")
	}
	if c.Settings.ReminderIntervalSeconds <= 0 {
		return errors.New("settings.reminderIntervalSeconds must be positive")
	}
	if c.Settings.ConfirmWindowSeconds <= 0 {
		return errors.New("settings.confirmWindowSeconds must be positive")
	}
	for currency, amount := range c.Settings.ReviveNeed {
		if amount < 0 {
			return fmt.Errorf("settings.reviveNeed.%s must not be negative", currency)
		}
	}
	if c.WriteQueue.Workers <= 0 || c.WriteQueue.Buffer <= 0 {
		return errors.New("writeQueue.workers and writeQueue.buffer must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hardcore")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.name", "")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.tablename", "hardcore_records")

	v.SetDefault("settings.servername", "default")
	v.SetDefault("settings.revivecooldownseconds", 3600)
	v.SetDefault("settings.keepinventory", false)
	v.SetDefault("settings.usehardcorehearts", true)
	v.SetDefault("settings.messageprefix", "[Hardcore] ")
	v.SetDefault("settings.reviveprocesscommands", []string{})
	v.SetDefault("settings.reminderintervalseconds", 300)
	v.SetDefault("settings.reminderthresholdseconds", 300)
	v.SetDefault("settings.confirmwindowseconds", 30)
	v.SetDefault("settings.placeholderonly", false)

	v.SetDefault("writequeue.workers", 4)
	v.SetDefault("writequeue.buffer", 1024)
	v.SetDefault("writequeue.tasktimeoutseconds", 10)

	v.SetDefault("server.addr", ":8085")
	v.SetDefault("server.admintoken", "")
	v.SetDefault("server.sessionpermissions", []string{"hardcore.revive"})
	v.SetDefault("notify.natsurl", "")
	v.SetDefault("notify.subject", "hardcore.notifications")
}
