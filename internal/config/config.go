package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Queue       PortConfig        `mapstructure:"queue"`
	Lobby       PortConfig        `mapstructure:"lobby"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Veto        VetoConfig        `mapstructure:"veto"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// PortConfig points at an external service behind one of the client ports.
type PortConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type ModeConfig struct {
	TeamSize          int           `mapstructure:"team_size"`
	EstimatedDuration time.Duration `mapstructure:"estimated_duration"`
}

type MatchmakingConfig struct {
	ReadyCheckTimeout    time.Duration         `mapstructure:"ready_check_timeout"`
	PollInterval         time.Duration         `mapstructure:"poll_interval"`
	CountdownTick        time.Duration         `mapstructure:"countdown_tick"`
	StatsRefreshInterval time.Duration         `mapstructure:"stats_refresh_interval"`
	StatsTTL             time.Duration         `mapstructure:"stats_ttl"`
	IdleTTL              time.Duration         `mapstructure:"idle_ttl"`
	Games                []string              `mapstructure:"games"`
	Modes                map[string]ModeConfig `mapstructure:"modes"`
}

type VetoConfig struct {
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	DefaultFormat string        `mapstructure:"default_format"`
	RoomLinger    time.Duration `mapstructure:"room_linger"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("queue.base_url", "")
	v.SetDefault("queue.token", "")
	v.SetDefault("queue.timeout", "5s")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("lobby.base_url", "")
	v.SetDefault("lobby.token", "")
	v.SetDefault("lobby.timeout", "5s")
	v.SetDefault("lobby.max_retries", 3)

	v.SetDefault("matchmaking.ready_check_timeout", "30s")
	v.SetDefault("matchmaking.poll_interval", "1500ms")
	v.SetDefault("matchmaking.countdown_tick", "1s")
	v.SetDefault("matchmaking.stats_refresh_interval", "10s")
	v.SetDefault("matchmaking.stats_ttl", "30s")
	v.SetDefault("matchmaking.idle_ttl", "10m")
	v.SetDefault("matchmaking.games", []string{})

	v.SetDefault("veto.step_timeout", "30s")
	v.SetDefault("veto.default_format", "ban-ban-ban-ban-pick-pick-remaining")
	v.SetDefault("veto.room_linger", "5m")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.prefix", "matchmaking")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads .env (if present), then an optional config.yaml from the working
// directory or ./configs, then environment variables such as
// MATCHMAKING_POLL_INTERVAL which override both.
func Load(paths ...string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asNotFound(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if c.Matchmaking.ReadyCheckTimeout <= 0 {
		return fmt.Errorf("config: matchmaking.ready_check_timeout must be positive")
	}
	if c.Matchmaking.PollInterval <= 0 {
		return fmt.Errorf("config: matchmaking.poll_interval must be positive")
	}
	if c.Veto.StepTimeout <= 0 {
		return fmt.Errorf("config: veto.step_timeout must be positive")
	}
	return nil
}
