package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitMetricsLogsDuplicateRegistration(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	InitMetrics(logger)
	assert.Zero(t, logs.Len())

	InitMetrics(logger)
	assert.Equal(t, 7, logs.FilterMessage("failed to register metric").Len())
}

func TestLinkAttemptsCountByLabel(t *testing.T) {
	before := testutil.ToFloat64(LinkAttempts.WithLabelValues("manual-entry", "linked"))
	LinkAttempts.WithLabelValues("manual-entry", "linked").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LinkAttempts.WithLabelValues("manual-entry", "linked")))
}
