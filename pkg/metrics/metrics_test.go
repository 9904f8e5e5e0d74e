package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusgate/tusgate/pkg/engine"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegistryRecordsRequestAndErrorCounters(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.RecordRequest("POST")
	reg.RecordRequestError(409, "OFFSET_MISMATCH")
	reg.RecordBytesReceived(128)
	reg.RecordUploadCreated()
	reg.RecordUploadFinished()
	reg.RecordUploadTerminated()

	assert.Equal(t, float64(1), counterValue(t, reg.RequestsTotal.WithLabelValues("POST")))
	assert.Equal(t, float64(1), counterValue(t, reg.ErrorsTotal.WithLabelValues("409", "OFFSET_MISMATCH")))
	assert.Equal(t, float64(128), counterValue(t, reg.BytesReceived))
	assert.Equal(t, float64(1), counterValue(t, reg.UploadsCreated))
	assert.Equal(t, float64(1), counterValue(t, reg.UploadsFinished))
	assert.Equal(t, float64(1), counterValue(t, reg.UploadsTerminated))
}

func TestRegistryRecordsHookCounters(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.RecordInvocation("httphook", engine.EventPostFinish)
	reg.RecordInvocation("httphook", engine.EventPostFinish)
	reg.RecordError("httphook", engine.EventPostFinish)

	assert.Equal(t, float64(2), counterValue(t, reg.HookInvocations.WithLabelValues("httphook", string(engine.EventPostFinish))))
	assert.Equal(t, float64(1), counterValue(t, reg.HookErrors.WithLabelValues("httphook", string(engine.EventPostFinish))))
}
