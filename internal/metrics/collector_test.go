package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RoomCreated()
	c.RoomCreated()
	c.RoomRemoved()
	c.ConnectionOpened()
	c.ObserveIntent("play", "applied")
	c.ObserveIntent("play", "applied")
	c.ObserveIntent("seek", "rejected")
	c.HostChanged("migrated")
	c.TimeProbe()
	c.Dropped("malformed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.intentsTotal.WithLabelValues("play", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.intentsTotal.WithLabelValues("seek", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.hostChangesTotal.WithLabelValues("migrated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.timeProbesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.droppedTotal.WithLabelValues("malformed")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Positive(t, n)
}
