package vchan

import (
	"fmt"
	"time"

	"avaneesh/vchan-go/pkg/ring"
)

const (
	// DefaultRingSize is the default minimum capacity of each ring
	DefaultRingSize = 64 * 1024

	// DefaultConnectDelay is the interval between client connect attempts and
	// the bound on each acceptor wait
	DefaultConnectDelay = 100 * time.Millisecond

	// maxPathLen is the usable length of sockaddr_un.sun_path
	maxPathLen = 107
)

// Config configures a channel
type Config struct {
	Path          string        // Rendezvous socket path
	ReadMin       int           // Minimum read ring capacity (0 = DefaultRingSize)
	WriteMin      int           // Minimum write ring capacity (0 = DefaultRingSize)
	ConnectDelay  time.Duration // Connect retry / accept poll interval (0 = DefaultConnectDelay)
	Logger        Logger        // Logger (nil = package default)
	OnStateChange func(State)   // Optional; called from the worker after each transition
}

// DefaultConfig returns default configuration for a channel at path
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		ReadMin:      DefaultRingSize,
		WriteMin:     DefaultRingSize,
		ConnectDelay: DefaultConnectDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.ReadMin == 0 {
		c.ReadMin = DefaultRingSize
	}
	if c.WriteMin == 0 {
		c.WriteMin = DefaultRingSize
	}
	if c.ConnectDelay == 0 {
		c.ConnectDelay = DefaultConnectDelay
	}
	return c
}

func (c Config) validate() error {
	if c.ReadMin < 0 || c.WriteMin < 0 {
		return fmt.Errorf("%w: negative ring size (read %d, write %d)", ErrInvalidConfig, c.ReadMin, c.WriteMin)
	}
	if c.ReadMin > ring.MaxCapacity || c.WriteMin > ring.MaxCapacity {
		return fmt.Errorf("%w: ring size above %d (read %d, write %d)", ErrInvalidConfig, ring.MaxCapacity, c.ReadMin, c.WriteMin)
	}
	if c.ConnectDelay < time.Millisecond {
		return fmt.Errorf("%w: connect delay %s below 1ms", ErrInvalidConfig, c.ConnectDelay)
	}
	return nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("%w: path %q longer than %d bytes", ErrInvalidConfig, path, maxPathLen)
	}
	return nil
}
