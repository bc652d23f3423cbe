package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadsByOutcome(t *testing.T) {
	m := New()
	m.ObserveUpload(OutcomeAnnotated)
	m.ObserveUpload(OutcomeAnnotated)
	m.ObserveUpload(OutcomeNoObjects)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues(OutcomeAnnotated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsTotal.WithLabelValues(OutcomeNoObjects)))
}

func TestDetectionsAndModelLatency(t *testing.T) {
	m := New()
	m.AddDetections(3)
	m.ObserveModelRequest("200", 120*time.Millisecond)

	expected := `
# HELP detector_detections_drawn_total Bounding boxes drawn onto annotated images.
# TYPE detector_detections_drawn_total counter
detector_detections_drawn_total 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "detector_detections_drawn_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "detector_model_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
