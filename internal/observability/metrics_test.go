package observability

import (
	"testing"
	"time"

	"github.com/davrell/pktwire/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordPacket("records", "recv", 512)
	RecordPacket("records", "send", 0)
	RecordSessionStart("echo")
	RecordSessionEnd("echo", 42*time.Millisecond)
	RecordHTTPRequest("pktwired-a", "GET", "/health", 200, 12*time.Millisecond)
}
