package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordConnectionAccepted()
	RecordHandshakeFailure()
	RecordResponse("echo", true)
	RecordDispatch("echo", 3*time.Millisecond)
	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
}
