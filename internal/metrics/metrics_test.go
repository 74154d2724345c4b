package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreOperation(t *testing.T) {
	m := New()
	m.StoreOperation("upload", ResultOK)
	m.StoreOperation("upload", ResultOK)
	m.StoreOperation("get", ResultNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("upload", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("get", ResultNotFound)))
}

func TestMetadataWriteFailure(t *testing.T) {
	m := New()
	m.MetadataWriteFailure("insert_version")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metadataWriteFailure.WithLabelValues("insert_version")))
}

func TestSetOrphans(t *testing.T) {
	m := New()
	m.SetOrphans("alice", 3, 1)
	m.SetOrphans("bob", 5, 4)
	m.SetOrphans("alice", 2, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.orphans.WithLabelValues("alice", "object")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.orphans.WithLabelValues("alice", "image")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.orphans.WithLabelValues("bob", "object")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.orphans.WithLabelValues("bob", "image")))
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/images/{id}", 200, 15*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(New()))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StoreOperation("upload", ResultOK)
		m.MetadataWriteFailure("insert_image")
		m.SetOrphans("alice", 1, 1)
		m.ObserveRequest("GET", "/", 200, time.Second)
	})
}
