package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spintune/authcore"
	"github.com/spintune/authcore/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
	failed   uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                     { return f.dropped }
func (f fakeSource) EventsFailed() uint64                      { return f.failed }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:         7,
				authcore.MetricRefreshReuseDetected: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
		failed:  3,
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(sampleSource())

	expected := `
# HELP authcore_login_success_total Logins that issued tokens.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_events_dropped_total Events lost to a full dispatcher buffer.
# TYPE authcore_events_dropped_total counter
authcore_events_dropped_total 2
# HELP authcore_events_failed_total Events the publisher rejected.
# TYPE authcore_events_failed_total counter
authcore_events_failed_total 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authcore_login_success_total",
		"authcore_events_dropped_total",
		"authcore_events_failed_total",
	)
	require.NoError(t, err)
}

func TestCollectorExposesEverySeries(t *testing.T) {
	c := NewCollector(sampleSource())
	want := len(internaldefs.CounterDefs) + len(internaldefs.HistogramDefs) + 2
	assert.Equal(t, want, testutil.CollectAndCount(c))
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, NewCollector(sampleSource())))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "authcore_validate_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(36), h.GetSampleCount())
		buckets := h.GetBucket()
		require.Len(t, buckets, len(internaldefs.UpperBounds()))
		assert.Equal(t, 0.005, buckets[0].GetUpperBound())
		assert.Equal(t, uint64(1), buckets[0].GetCumulativeCount())
		assert.Equal(t, uint64(28), buckets[len(buckets)-1].GetCumulativeCount())
	}
	assert.True(t, found)
}

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(sampleSource())
	require.NoError(t, Register(reg, c))
	assert.NoError(t, Register(reg, c))
}

func TestHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(NewCollector(sampleSource())).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authcore_login_success_total 7")
	assert.Contains(t, rec.Body.String(), `authcore_validate_latency_seconds_bucket{le="+Inf"} 36`)
}
