package queue

import (
	"errors"
	"fmt"
	"time"
)

// Overflow selects what Submit does when a bounded queue is full.
type Overflow int

const (
	// OverflowBlock makes Submit wait for space or for ctx to end.
	OverflowBlock Overflow = iota
	// OverflowReject makes Submit fail with pub.ErrQueueFull.
	OverflowReject
	// OverflowDropOldest evicts the oldest pending job and reports it as dropped.
	OverflowDropOldest
)

func (o Overflow) String() string {
	switch o {
	case OverflowBlock:
		return "block"
	case OverflowReject:
		return "reject"
	case OverflowDropOldest:
		return "drop-oldest"
	}
	return fmt.Sprintf("overflow(%d)", int(o))
}

// UnmarshalText lets env parse QUEUE_OVERFLOW.
func (o *Overflow) UnmarshalText(text []byte) error {
	switch string(text) {
	case "block", "":
		*o = OverflowBlock
	case "reject":
		*o = OverflowReject
	case "drop-oldest":
		*o = OverflowDropOldest
	default:
		return fmt.Errorf("unknown overflow policy %q", text)
	}
	return nil
}

// Config holds queue sizing and shutdown settings.
//
// Workers is the number of goroutines pulling jobs. With one worker jobs run
// strictly in submission order and never concurrently. With more than one,
// jobs still start in submission order but may finish in any order. Zero
// workers runs every job inline on the submitting goroutine.
//
// Capacity bounds the number of pending jobs; zero means unbounded, in which
// case Submit never waits and Overflow is ignored.
type Config struct {
	Name         string        `env:"QUEUE_NAME" envDefault:"default"`
	Workers      int           `env:"QUEUE_WORKERS" envDefault:"1"`
	Capacity     int           `env:"QUEUE_CAPACITY" envDefault:"0"`
	Overflow     Overflow      `env:"QUEUE_OVERFLOW" envDefault:"block"`
	DrainTimeout time.Duration `env:"QUEUE_DRAIN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		Name:         "default",
		Workers:      1,
		Overflow:     OverflowBlock,
		DrainTimeout: 30 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.Name == "":
		return errors.New("queue name is required")
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.Capacity < 0:
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	case c.Overflow < OverflowBlock || c.Overflow > OverflowDropOldest:
		return fmt.Errorf("unknown overflow policy %s", c.Overflow)
	}
	return nil
}
