package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveLoad(t *testing.T) {
	before := testutil.ToFloat64(FilesLoaded.WithLabelValues("ascii", "success"))
	ObserveLoad("ascii", "success", time.Millisecond, 12, 3)

	assert.Equal(t, before+1, testutil.ToFloat64(FilesLoaded.WithLabelValues("ascii", "success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(LastLoadShape.WithLabelValues("rows")))
	assert.Equal(t, 3.0, testutil.ToFloat64(LastLoadShape.WithLabelValues("columns")))
}

func TestDisabledSkipsRecording(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	before := testutil.ToFloat64(ParseDiagnostics.WithLabelValues("no_data"))
	Diagnostic("no_data")
	assert.Equal(t, before, testutil.ToFloat64(ParseDiagnostics.WithLabelValues("no_data")))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "failure", Status(errors.New("boom")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("save")
	assert.Equal(t, "save", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
