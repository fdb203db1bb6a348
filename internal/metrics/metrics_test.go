package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "error", classifyStatus(0))
	assert.Equal(t, "2xx", classifyStatus(204))
	assert.Equal(t, "4xx", classifyStatus(429))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "unknown", classifyStatus(99))
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(syncRunsTotal.WithLabelValues("cli", "failed"))
	RecordRun("cli", false, 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(syncRunsTotal.WithLabelValues("cli", "failed")))
}

func TestSetIntegrityAlerts(t *testing.T) {
	SetIntegrityAlerts(map[string]int{"high": 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(integrityAlerts.WithLabelValues("high")))

	SetIntegrityAlerts(map[string]int{})
	assert.Equal(t, 0, testutil.CollectAndCount(integrityAlerts))
}
