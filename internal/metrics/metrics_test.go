package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBackup(t *testing.T) {
	m := New()

	m.ObserveBackup("inprocess", OutcomeStored, 0, 10*time.Millisecond)
	m.ObserveBackup("inprocess", OutcomeStored, 2, 10*time.Millisecond)
	m.ObserveBackup("worker", OutcomeExhausted, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackupTotal.WithLabelValues(OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackupTotal.WithLabelValues(OutcomeExhausted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvictionsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BackupDuration))
}

func TestObserveRestore(t *testing.T) {
	m := New()

	m.ObserveRestore(RestoreFailed, "creating_session", time.Second)
	m.ObserveRestore(RestoreDeclined, "", 0)
	m.ObserveRestore(RestoreDone, "", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreFailures.WithLabelValues("creating_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreTotal.WithLabelValues(RestoreDeclined)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RestoreFailures))
}

func TestGauges(t *testing.T) {
	m := New()
	m.SetAutoEnabled(true)
	m.SetStored(7, 3)
	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerDone()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutoEnabled))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.StoredRecords))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoredChats))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerInFlight))

	m.SetAutoEnabled(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AutoEnabled))
}

func TestWritePrometheus(t *testing.T) {
	m := New()
	m.ObserveSkip("empty_conversation")

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))

	out := buf.String()
	assert.Contains(t, out, "# TYPE chatbackup_backup_skipped_total counter")
	assert.Contains(t, out, `chatbackup_backup_skipped_total{reason="empty_conversation"} 1`)

	expected := `
# HELP chatbackup_stored_records Records currently held in the store.
# TYPE chatbackup_stored_records gauge
chatbackup_stored_records 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "chatbackup_stored_records"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveBackup("inprocess", OutcomeStored, 1, time.Second)
	m.ObserveSkip("disabled")
	m.ObserveRestore(RestoreDone, "", time.Second)
	m.SetAutoEnabled(true)
	m.WorkerStarted()
	m.WorkerDone()
	m.SetStored(1, 1)
	assert.NoError(t, m.WritePrometheus(&bytes.Buffer{}))
}

func TestInstancesAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.ObserveSkip("disabled")
	assert.Equal(t, 0, testutil.CollectAndCount(b.BackupSkipped))
}
