package metrics_test

import (
	"testing"
	"time"

	"anarchy.ttfm/scanpay/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_Metrics(t *testing.T) {
	t.Run("Observe", func(t *testing.T) {
		assertions := assert.New(t)

		m := metrics.New(prometheus.NewRegistry())
		m.ObserveScan("accepted")
		m.ObserveScan("accepted")
		m.ObserveFeeLookup("failed")
		m.ObserveSubmission("InvalidPin", time.Second)

		assertions.Equal(2.0, testutil.ToFloat64(m.Scans.WithLabelValues("accepted")))
		assertions.Equal(1.0, testutil.ToFloat64(m.FeeLookups.WithLabelValues("failed")))
		assertions.Equal(1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("InvalidPin")))
	})

	t.Run("Nil", func(t *testing.T) {
		assertions := assert.New(t)

		var m *metrics.Metrics
		assertions.NotPanics(func() {
			m.ObserveScan("accepted")
			m.ObserveFeeLookup("none")
			m.ObserveSubmission("Succeeded", time.Second)
		})
	})
}
