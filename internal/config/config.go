package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Booking  BookingConfig  `mapstructure:"booking"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// BookingConfig tunes the scheduling engine.
type BookingConfig struct {
	// Timezone is the IANA zone lessons are generated in. All wall-clock
	// times in the weekly schedule are interpreted in this zone.
	Timezone string `mapstructure:"timezone"`
	// DefaultLockOutMinutes is applied when a saved schedule omits the
	// lock-out window. An explicit zero in the request disables it.
	DefaultLockOutMinutes int `mapstructure:"default_lockout_minutes"`
	// GenerateWeeksAhead, when > 0, enables the nightly background run that
	// keeps that many weeks of lessons materialised for every tenant.
	GenerateWeeksAhead int `mapstructure:"generate_weeks_ahead"`
}

// JWTConfig defines JWT specific configuration. Tokens are issued by the
// external auth system; only the verification secret is needed here.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override the file, e.g. server.address ->
	// SERVER_ADDRESS, booking.timezone -> BOOKING_TIMEZONE.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "bookings_app")
	viper.SetDefault("booking.timezone", "Europe/Dublin")
	viper.SetDefault("booking.default_lockout_minutes", 0)
	viper.SetDefault("booking.generate_weeks_ahead", 0)

	err = viper.ReadInConfig()
	// Missing file is fine; defaults and env vars still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
