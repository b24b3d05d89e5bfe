package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvNotificationsRedisAddr     = "COUNTERSIGN_NOTIFICATIONS_REDIS_ADDR"
	EnvNotificationsRedisPassword = "COUNTERSIGN_NOTIFICATIONS_REDIS_PASSWORD"
	EnvNotificationsRedisDB       = "COUNTERSIGN_NOTIFICATIONS_REDIS_DB"
	EnvNotificationsChannelPrefix = "COUNTERSIGN_NOTIFICATIONS_CHANNEL_PREFIX"
	EnvNotificationsDispatchLimit = "COUNTERSIGN_NOTIFICATIONS_DISPATCH_LIMIT"
)

// NotificationsConfig controls notification fan-out. Redis publishing is
// enabled only when RedisAddr is set.
type NotificationsConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	ChannelPrefix string `toml:"channel_prefix"`
	DispatchLimit int    `toml:"dispatch_limit"`
}

// PublishEnabled reports whether a Redis publisher should be created.
func (c *NotificationsConfig) PublishEnabled() bool {
	return c.RedisAddr != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *NotificationsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *NotificationsConfig) Merge(overlay *NotificationsConfig) {
	if overlay.RedisAddr != "" {
		c.RedisAddr = overlay.RedisAddr
	}
	if overlay.RedisPassword != "" {
		c.RedisPassword = overlay.RedisPassword
	}
	if overlay.RedisDB != 0 {
		c.RedisDB = overlay.RedisDB
	}
	if overlay.ChannelPrefix != "" {
		c.ChannelPrefix = overlay.ChannelPrefix
	}
	if overlay.DispatchLimit != 0 {
		c.DispatchLimit = overlay.DispatchLimit
	}
}

func (c *NotificationsConfig) loadDefaults() {
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "countersign:notifications"
	}
	if c.DispatchLimit <= 0 {
		c.DispatchLimit = 4
	}
}

func (c *NotificationsConfig) loadEnv() {
	if v := os.Getenv(EnvNotificationsRedisAddr); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv(EnvNotificationsRedisPassword); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv(EnvNotificationsRedisDB); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv(EnvNotificationsChannelPrefix); v != "" {
		c.ChannelPrefix = v
	}
	if v := os.Getenv(EnvNotificationsDispatchLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DispatchLimit = n
		}
	}
}

func (c *NotificationsConfig) validate() error {
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis_db: %d", c.RedisDB)
	}
	if c.DispatchLimit < 1 {
		return fmt.Errorf("dispatch_limit must be positive")
	}
	return nil
}
