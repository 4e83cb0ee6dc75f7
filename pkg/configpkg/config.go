// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBSource          string        `mapstructure:"DB_SOURCE"`
	ServerAddress     string        `mapstructure:"SERVER_ADDRESS"`
	TokenSymmetricKey string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	TokenType         string        `mapstructure:"TOKEN_TYPE"`
	ServiceAccounts   string        `mapstructure:"SERVICE_ACCOUNTS"`
	Environement      string        `mapstructure:"GO_ENV"`
	TxMaxRetries      int           `mapstructure:"TX_MAX_RETRIES"`
	TxRetryBackoff    time.Duration `mapstructure:"TX_RETRY_BACKOFF"`
	TxLockTimeout     time.Duration `mapstructure:"TX_LOCK_TIMEOUT"`
	EscrowDefaultTTL  time.Duration `mapstructure:"ESCROW_DEFAULT_TTL"`
	EscrowMaxTTL      time.Duration `mapstructure:"ESCROW_MAX_TTL"`
	BidHoldTTL        time.Duration `mapstructure:"BID_HOLD_TTL"`
	SweepInterval     time.Duration `mapstructure:"ESCROW_SWEEP_INTERVAL"`
	SweepBatch        int           `mapstructure:"ESCROW_SWEEP_BATCH"`
	RedisAddress      string        `mapstructure:"REDIS_ADDRESS"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	TopupSecret       string        `mapstructure:"TOPUP_SIGNING_SECRET"`
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("TOKEN_TYPE", "paseto")
	viper.SetDefault("TX_MAX_RETRIES", 3)
	viper.SetDefault("TX_RETRY_BACKOFF", 50*time.Millisecond)
	viper.SetDefault("TX_LOCK_TIMEOUT", 5*time.Second)
	viper.SetDefault("ESCROW_DEFAULT_TTL", 24*time.Hour)
	viper.SetDefault("ESCROW_MAX_TTL", 30*24*time.Hour)
	viper.SetDefault("BID_HOLD_TTL", 7*24*time.Hour)
	viper.SetDefault("ESCROW_SWEEP_INTERVAL", time.Minute)
	viper.SetDefault("ESCROW_SWEEP_BATCH", 100)
	viper.SetDefault("KAFKA_TOPIC", "wallet.events")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}

// ServiceAccountList returns the subjects allowed to call service routes.
func (c Config) ServiceAccountList() []string {
	return splitList(c.ServiceAccounts)
}

// KafkaBrokerList returns the configured kafka brokers.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	var items []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
