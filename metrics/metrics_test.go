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

func TestRecorder_ObserveAdjudication(t *testing.T) {
	r := NewRecorder()

	r.ObserveAdjudication(150*time.Millisecond, nil)
	r.ObserveAdjudication(2*time.Second, errors.New("503"))
	r.ObserveAdjudication(50*time.Millisecond, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.elements))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_ObserveVerdict(t *testing.T) {
	r := NewRecorder()

	r.ObserveVerdict("compliant")
	r.ObserveVerdict("non-compliant")
	r.ObserveVerdict("non-compliant")
	r.ObserveVerdict("")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.verdicts.WithLabelValues("compliant")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.verdicts.WithLabelValues("non-compliant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verdicts.WithLabelValues("unknown")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.verdicts))
}

func TestRecorder_ObservePage(t *testing.T) {
	r := NewRecorder()
	r.ObservePage()
	r.ObservePage()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.pages))
}

func TestRecorder_IsolatedRegistries(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()

	a.ObservePage()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.pages))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.pages))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObservePage()
	r.ObserveAdjudication(time.Second, nil)
	r.ObserveVerdict("needs-review")

	path := filepath.Join(t.TempDir(), "uiaudit.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "uiaudit_pages_total 1")
	assert.Contains(t, string(data), `uiaudit_verdicts_total{status_class="needs-review"} 1`)
	assert.Contains(t, string(data), "uiaudit_adjudication_duration_seconds_count 1")
}

func TestRecorder_WriteTextfile_BadDir(t *testing.T) {
	r := NewRecorder()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "uiaudit.prom"))
	assert.Error(t, err)
}

func TestClassLabel(t *testing.T) {
	assert.Equal(t, "unknown", ClassLabel(""))
	assert.Equal(t, "compliant", ClassLabel("compliant"))
}
