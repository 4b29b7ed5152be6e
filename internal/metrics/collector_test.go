package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentloop/agent"
	"github.com/BaSui01/agentloop/llm/tools"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

var (
	_ agent.Metrics  = (*Collector)(nil)
	_ tools.Recorder = (*Collector)(nil)
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.agentRunsTotal)
	assert.NotNil(t, collector.toolCallsTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/run", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/api/v1/run", 200, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/api/v1/run", 502, 50*time.Millisecond, 512, 64)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/run", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/run", "5xx")))
}

func TestCollector_ObserveLLMCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveLLMCall("gpt-4o-mini", "success", 120, 500*time.Millisecond)
	collector.ObserveLLMCall("gpt-4o-mini", "upstream_timeout", 0, 60*time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.llmRequestsTotal))
	assert.Equal(t, float64(120), testutil.ToFloat64(collector.llmPromptTokens.WithLabelValues("gpt-4o-mini")))
}

func TestCollector_ObserveRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveRun(string(agent.TerminationFinalAnswer), 2, time.Second)
	collector.ObserveRun(string(agent.TerminationFinalAnswer), 1, time.Second)
	collector.ObserveRun(string(agent.TerminationAborted), 0, time.Millisecond)
	collector.ObserveParseError()

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.agentRunsTotal.WithLabelValues("final_answer")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.agentRunsTotal.WithLabelValues("aborted")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.agentIterations))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.agentParseErrors))
}

func TestCollector_RecordToolInvocation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordToolInvocation("Image Generator", tools.StatusSuccess, time.Second)
	collector.RecordToolInvocation("Image Generator", tools.StatusTimeout, 30*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.toolCallsTotal.WithLabelValues("Image Generator", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.toolCallDuration))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {204, "2xx"}, {301, "3xx"}, {404, "4xx"}, {429, "4xx"}, {500, "5xx"}, {100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code), "code %d", tt.code)
	}
}
