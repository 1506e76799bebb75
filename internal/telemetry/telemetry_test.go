package telemetry

import (
	"context"
	"testing"

	"ledgerpay/config"

	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "ledgerpay"}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		ServiceName:  "ledgerpay",
		OTLPEndpoint: "127.0.0.1:4318",
		Insecure:     true,
	}, "test")
	require.NoError(t, err)
	// Nothing was recorded, so shutdown has nothing to flush.
	require.NoError(t, shutdown(context.Background()))
}
