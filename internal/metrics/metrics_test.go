package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.Stage("DIM_LOCAL", "materialize", 120*time.Millisecond, nil)
	r.Stage("DIM_LOCAL", "materialize", 80*time.Millisecond, nil)
	r.Stage("DIM_IN_INTERNET", "materialize", time.Second, errors.New("boom"))
	r.Rows("DIM_LOCAL", 5570)
	r.CastFailures("FACT_CENSO_ESCOLAR", 3)
	r.Unresolved("DIM_LOCAL", 2)

	assert.InDelta(t, 2, testutil.ToFloat64(r.stageTotal.WithLabelValues("DIM_LOCAL", "materialize", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.stageTotal.WithLabelValues("DIM_IN_INTERNET", "materialize", "failed")), 0)
	assert.InDelta(t, 5570, testutil.ToFloat64(r.rows.WithLabelValues("DIM_LOCAL")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(r.castFailures.WithLabelValues("FACT_CENSO_ESCOLAR")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.unresolved.WithLabelValues("DIM_LOCAL")), 0)

	// Re-running overwrites gauges.
	r.Rows("DIM_LOCAL", 10)
	assert.InDelta(t, 10, testutil.ToFloat64(r.rows.WithLabelValues("DIM_LOCAL")), 0)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Rows("FACT_CENSO_ESCOLAR", 42)
	r.RunFinished("completed", time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "leapstar.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `leapstar_entity_rows{entity="FACT_CENSO_ESCOLAR"} 42`)
	assert.Contains(t, string(data), `leapstar_last_run_timestamp_seconds{status="completed"} 1.7e+09`)

	assert.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
