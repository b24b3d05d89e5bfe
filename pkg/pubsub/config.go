package pubsub

import "fmt"

// Config holds Redis connection parameters for publishing.
type Config struct {
	Addr     string
	Password string
	DB       int
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr required")
	}
	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	return nil
}
