package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CRM"

type Config struct {
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
	Store      Store      `yaml:"store"`
	Redis      Redis      `yaml:"redis"`
	Validation Validation `yaml:"validation"`
	Jobs       Jobs       `yaml:"jobs"`
}

type Server struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string `yaml:"cors_origins"`
}

type Log struct {
	Mode string `yaml:"mode"`
}

type Store struct {
	// Driver is "mysql" or "memory".
	Driver          string        `yaml:"driver"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// Redis is optional; an empty Addr disables the email guard.
type Redis struct {
	Addr         string        `yaml:"addr"`
	PoolSize     int           `yaml:"pool_size"`
	EmailLockTTL time.Duration `yaml:"email_lock_ttl"`
}

type Validation struct {
	PhonePatterns      []string `yaml:"phone_patterns"`
	PhoneFormatMessage string   `yaml:"phone_format_message"`
	NameMaxLength      int      `yaml:"name_max_length"`
	EmailMaxLength     int      `yaml:"email_max_length"`
	PriceMaxDigits     int      `yaml:"price_max_digits"`
	PriceDecimalPlaces int      `yaml:"price_decimal_places"`
	LowStockThreshold  int      `yaml:"low_stock_threshold"`
	RestockAmount      int      `yaml:"restock_amount"`
}

type Jobs struct {
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	Heartbeat Job           `yaml:"heartbeat"`
	Report    Job           `yaml:"report"`
	Reminders Job           `yaml:"reminders"`
	Restock   Job           `yaml:"restock"`
	// ReminderDays is the trailing window scanned by the reminders job.
	ReminderDays int `yaml:"reminder_days"`
}

type Job struct {
	Schedule string `yaml:"schedule"`
	LogFile  string `yaml:"log_file"`
}

func Default() Config {
	return Config{
		Server: Server{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: Log{Mode: "dev"},
		Store: Store{
			Driver:          "mysql",
			MySQLDSN:        "root:root@tcp(localhost:3306)/crm?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
		},
		Redis: Redis{
			PoolSize:     100,
			EmailLockTTL: 30 * time.Second,
		},
		Validation: Validation{
			PhonePatterns: []string{
				`^\+\d{10,15}$`,
				`^\d{3}-\d{3}-\d{4}$`,
			},
			PhoneFormatMessage: "Phone must be in format +1234567890 or 123-456-7890",
			NameMaxLength:      255,
			EmailMaxLength:     255,
			PriceMaxDigits:     10,
			PriceDecimalPlaces: 2,
			LowStockThreshold:  10,
			RestockAmount:      10,
		},
		Jobs: Jobs{
			Enabled: true,
			Timeout: 30 * time.Second,
			Heartbeat: Job{
				Schedule: "@every 5m",
				LogFile:  "/tmp/crm_heartbeat_log.txt",
			},
			Report: Job{
				Schedule: "0 0 6 * * 1",
				LogFile:  "/tmp/crm_report_log.txt",
			},
			Reminders: Job{
				Schedule: "0 0 8 * * *",
				LogFile:  "/tmp/order_reminders_log.txt",
			},
			Restock: Job{
				Schedule: "@every 12h",
				LogFile:  "/tmp/low_stock_updates_log.txt",
			},
			ReminderDays: 7,
		},
	}
}

// Load reads path on top of Default and then applies CRM_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "mysql":
		if c.Store.MySQLDSN == "" {
			return errors.New("config: store.mysql_dsn is required for the mysql driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if len(c.Validation.PhonePatterns) == 0 {
		return errors.New("config: validation.phone_patterns must not be empty")
	}
	if c.Validation.PriceDecimalPlaces < 0 || c.Validation.PriceMaxDigits <= c.Validation.PriceDecimalPlaces {
		return errors.New("config: price_max_digits must exceed price_decimal_places")
	}
	if c.Validation.RestockAmount <= 0 {
		return errors.New("config: validation.restock_amount must be positive")
	}
	return nil
}

// envOverrides lists the settings that can come from CRM_* variables.
// Unset variables leave the loaded value in place.
type envOverrides struct {
	HTTPAddr          string   `envconfig:"HTTP_ADDR"`
	GRPCAddr          string   `envconfig:"GRPC_ADDR"`
	CORSOrigins       []string `envconfig:"CORS_ORIGINS"`
	LogMode           string   `envconfig:"LOG_MODE"`
	StoreDriver       string   `envconfig:"STORE_DRIVER"`
	MySQLDSN          string   `envconfig:"MYSQL_DSN"`
	RedisAddr         string   `envconfig:"REDIS_ADDR"`
	JobsEnabled       bool     `envconfig:"JOBS_ENABLED"`
	LowStockThreshold int      `envconfig:"LOW_STOCK_THRESHOLD"`
}

func applyEnv(cfg *Config) error {
	env := envOverrides{
		HTTPAddr:          cfg.Server.HTTPAddr,
		GRPCAddr:          cfg.Server.GRPCAddr,
		CORSOrigins:       cfg.Server.CORSOrigins,
		LogMode:           cfg.Log.Mode,
		StoreDriver:       cfg.Store.Driver,
		MySQLDSN:          cfg.Store.MySQLDSN,
		RedisAddr:         cfg.Redis.Addr,
		JobsEnabled:       cfg.Jobs.Enabled,
		LowStockThreshold: cfg.Validation.LowStockThreshold,
	}
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	cfg.Server.HTTPAddr = env.HTTPAddr
	cfg.Server.GRPCAddr = env.GRPCAddr
	cfg.Server.CORSOrigins = env.CORSOrigins
	cfg.Log.Mode = env.LogMode
	cfg.Store.Driver = env.StoreDriver
	cfg.Store.MySQLDSN = env.MySQLDSN
	cfg.Redis.Addr = env.RedisAddr
	cfg.Jobs.Enabled = env.JobsEnabled
	cfg.Validation.LowStockThreshold = env.LowStockThreshold
	return nil
}
