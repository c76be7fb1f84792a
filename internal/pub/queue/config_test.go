package queue_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"

	"pubq/internal/pub/queue"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg queue.Config
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))

	require.Equal(t, queue.DefaultConfig(), cfg)
}

func TestConfig_FromEnvironment(t *testing.T) {
	var cfg queue.Config
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"QUEUE_NAME":          "orders",
		"QUEUE_WORKERS":       "4",
		"QUEUE_CAPACITY":      "128",
		"QUEUE_OVERFLOW":      "drop-oldest",
		"QUEUE_DRAIN_TIMEOUT": "5s",
	}})
	require.NoError(t, err)

	require.Equal(t, queue.Config{
		Name:         "orders",
		Workers:      4,
		Capacity:     128,
		Overflow:     queue.OverflowDropOldest,
		DrainTimeout: 5 * time.Second,
	}, cfg)
}

func TestConfig_UnknownOverflow(t *testing.T) {
	var cfg queue.Config
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"QUEUE_OVERFLOW": "drop-newest",
	}})
	require.Error(t, err)
}

func TestOverflow_String(t *testing.T) {
	for _, o := range []queue.Overflow{queue.OverflowBlock, queue.OverflowReject, queue.OverflowDropOldest} {
		var parsed queue.Overflow
		require.NoError(t, parsed.UnmarshalText([]byte(o.String())))
		require.Equal(t, o, parsed)
	}
}
