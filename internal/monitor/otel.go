package monitor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rbignon/ER-Route-tracker/internal/monitor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
