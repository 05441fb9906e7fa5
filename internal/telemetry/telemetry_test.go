package telemetry

import (
	"context"
	"testing"

	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown := Setup(context.Background(), config.TelemetryConfig{ServiceName: "test"}, logger.InitializeTestZapLogger())
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
