package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Engine   EngineConfig      `mapstructure:"engine"`
	Feed     FeedConfig        `mapstructure:"feed"`
	Reports  ReportsConfig     `mapstructure:"reports"`
	Rules    []risk.RuleConfig `mapstructure:"rules"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MonitorAddress string `mapstructure:"monitor_address"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // gorm | postgres | memory
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type EngineConfig struct {
	// 分段边界，默认 2/5 小时
	Segments segment.Thresholds `mapstructure:"segments"`
}

type FeedConfig struct {
	RefreshSeconds        int `mapstructure:"refresh_seconds"`
	MaxSubscribers        int `mapstructure:"max_subscribers"`
	SessionTimeoutSeconds int `mapstructure:"session_timeout_seconds"`
}

type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
	// 0 表示不做定时导出
	IntervalHours int `mapstructure:"interval_hours"`
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":9000")
	viper.SetDefault("server.monitor_address", ":9100")
	viper.SetDefault("database.driver", "memory")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.user", "postgres")
	viper.SetDefault("database.postgres.password", "")
	viper.SetDefault("database.postgres.dbname", "gamerisk")
	viper.SetDefault("engine.segments.lower", 2.0)
	viper.SetDefault("engine.segments.upper", 5.0)
	viper.SetDefault("feed.refresh_seconds", 5)
	viper.SetDefault("feed.max_subscribers", 256)
	viper.SetDefault("feed.session_timeout_seconds", 300)
	viper.SetDefault("reports.dir", "reports_out")
	viper.SetDefault("reports.interval_hours", 0)
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// 没有配置文件时用默认值启动内存模式
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}
	err = validate(config)
	return
}

// validate 启动即校验，坏配置不让服务起来
func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "gorm", "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err := cfg.Engine.Segments.Validate(); err != nil {
		return err
	}
	if cfg.Feed.RefreshSeconds <= 0 {
		return fmt.Errorf("feed.refresh_seconds must be positive, got %d", cfg.Feed.RefreshSeconds)
	}
	if cfg.Feed.MaxSubscribers <= 0 {
		return fmt.Errorf("feed.max_subscribers must be positive, got %d", cfg.Feed.MaxSubscribers)
	}
	for _, rc := range cfg.Rules {
		if _, err := rc.Build(); err != nil {
			return err
		}
	}
	return nil
}
