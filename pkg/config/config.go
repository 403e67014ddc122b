package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the trust layer
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Fraud       FraudConfig     `mapstructure:"fraud"`
	Oracle      OracleConfig    `mapstructure:"oracle"`
	Consensus   ConsensusConfig `mapstructure:"consensus"`
	Identity    IdentityConfig  `mapstructure:"identity"`
	Sweeper     SweeperConfig   `mapstructure:"sweeper"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string        `mapstructure:"url"`
	MaxConns int           `mapstructure:"max_conns"`
	Timeout  time.Duration `mapstructure:"timeout"`
	SSLMode  string        `mapstructure:"ssl_mode"`
}

// FraudConfig holds anomaly scoring parameters
type FraudConfig struct {
	Threshold     uint32 `mapstructure:"threshold"`
	AnomalyFactor uint32 `mapstructure:"anomaly_factor"`
}

// OracleConfig holds oracle registry parameters
type OracleConfig struct {
	MinStake        uint64 `mapstructure:"min_stake"`
	RegistrationFee uint64 `mapstructure:"registration_fee"`
	Treasury        string `mapstructure:"treasury"`
}

// ConsensusConfig holds validation quorum parameters
type ConsensusConfig struct {
	ResponseTimeout uint64 `mapstructure:"response_timeout"`
	MinConfidence   uint32 `mapstructure:"min_confidence"`
	QuorumThreshold uint32 `mapstructure:"quorum_threshold"`
}

// IdentityConfig holds authorization settings
type IdentityConfig struct {
	Admin       string        `mapstructure:"admin"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// SweeperConfig holds expiry sweeper settings
type SweeperConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	v.SetEnvPrefix("FITATTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Fraud defaults
	v.SetDefault("fraud.threshold", 70)
	v.SetDefault("fraud.anomaly_factor", 2)

	// Oracle defaults
	v.SetDefault("oracle.min_stake", 1000000)
	v.SetDefault("oracle.registration_fee", 5000)
	v.SetDefault("oracle.treasury", "treasury")

	// Consensus defaults
	v.SetDefault("consensus.response_timeout", 100)
	v.SetDefault("consensus.min_confidence", 80)
	v.SetDefault("consensus.quorum_threshold", 66)

	// Identity defaults
	v.SetDefault("identity.token_expiry", "24h")

	// Sweeper defaults
	v.SetDefault("sweeper.schedule", "*/30 * * * * *")
	v.SetDefault("sweeper.enabled", true)

	// Database defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.timeout", "30s")
	v.SetDefault("database.ssl_mode", "disable")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateFraud(); err != nil {
		return fmt.Errorf("fraud config: %w", err)
	}
	if err := c.validateOracle(); err != nil {
		return fmt.Errorf("oracle config: %w", err)
	}
	if err := c.validateConsensus(); err != nil {
		return fmt.Errorf("consensus config: %w", err)
	}
	return nil
}

func (c *Config) validateFraud() error {
	if c.Fraud.Threshold == 0 || c.Fraud.Threshold > 100 {
		return fmt.Errorf("threshold must be between 1 and 100")
	}
	if c.Fraud.AnomalyFactor == 0 {
		return fmt.Errorf("anomaly_factor must be positive")
	}
	return nil
}

func (c *Config) validateOracle() error {
	if c.Oracle.MinStake == 0 {
		return fmt.Errorf("min_stake must be positive")
	}
	if c.Oracle.Treasury == "" {
		return fmt.Errorf("treasury account cannot be empty")
	}
	return nil
}

func (c *Config) validateConsensus() error {
	if c.Consensus.ResponseTimeout == 0 {
		return fmt.Errorf("response_timeout must be positive")
	}
	if c.Consensus.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be between 0 and 100")
	}
	if c.Consensus.QuorumThreshold == 0 || c.Consensus.QuorumThreshold > 100 {
		return fmt.Errorf("quorum_threshold must be between 1 and 100")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
