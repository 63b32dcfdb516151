package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Calendar CalendarConfig `yaml:"calendar"`
	Reports  ReportsConfig  `yaml:"reports"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	CORSAllowOrigin string        `yaml:"cors_allow_origin"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EngineConfig tunes the state calculation.
type EngineConfig struct {
	// AmberScoreThreshold promotes a green entity to AMBER when the risk
	// score reaches it.
	AmberScoreThreshold float64 `yaml:"amber_score_threshold"`
	// NoiseThreshold is the risk score movement, in points, below which no
	// history snapshot is written.
	NoiseThreshold float64 `yaml:"noise_threshold"`
	// Penalty exposure must grow by both the ratio and the floor before a
	// PENALTY_RISK alert fires.
	PenaltyMaterialityRatio float64       `yaml:"penalty_materiality_ratio"`
	PenaltyMaterialityFloor float64       `yaml:"penalty_materiality_floor"`
	WorkerConcurrency       int           `yaml:"worker_concurrency"`
	CalcTimeout             time.Duration `yaml:"calc_timeout"`
}

// CalendarConfig feeds the working-day calendar. Holidays are ISO dates;
// the empty jurisdiction key holds national holidays.
type CalendarConfig struct {
	Holidays map[string][]string `yaml:"holidays"`
	Weekends map[string][]string `yaml:"weekends"`
}

type ReportsConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	AccessTokenExpiry  time.Duration `yaml:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `yaml:"refresh_token_expiry"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	if c.Engine.AmberScoreThreshold == 0 {
		c.Engine.AmberScoreThreshold = 30
	}
	if c.Engine.NoiseThreshold == 0 {
		c.Engine.NoiseThreshold = 5.0
	}
	if c.Engine.PenaltyMaterialityRatio == 0 {
		c.Engine.PenaltyMaterialityRatio = 0.10
	}
	if c.Engine.PenaltyMaterialityFloor == 0 {
		c.Engine.PenaltyMaterialityFloor = 100
	}
	if c.Engine.WorkerConcurrency == 0 {
		c.Engine.WorkerConcurrency = 4
	}
	if c.Engine.CalcTimeout == 0 {
		c.Engine.CalcTimeout = 30 * time.Second
	}

	if c.Reports.S3Region == "" {
		c.Reports.S3Region = "ap-south-1"
	}
	if c.Reports.S3Prefix == "" {
		c.Reports.S3Prefix = "reports"
	}

	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "change-me-in-production"

		fmt.Println("WARNING: Using default JWT secret. Set auth.jwt_secret in production!")
	}
	if c.Auth.AccessTokenExpiry == 0 {
		c.Auth.AccessTokenExpiry = 15 * time.Minute
	}
	if c.Auth.RefreshTokenExpiry == 0 {
		c.Auth.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
}
