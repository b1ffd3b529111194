package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveCommand("set", "ok")
	m.ObserveCommand("set", "ok")
	m.ObserveCommand("hour", "denied")
	m.ObserveAnnouncement("sent")
	m.ObserveStoreWrite(nil)
	m.ObserveStoreWrite(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("hour", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.announcements.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeWrites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeWrites.WithLabelValues("error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveCommand("help", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `birthdaybot_commands_total{command="help",outcome="ok"} 1`)
}
