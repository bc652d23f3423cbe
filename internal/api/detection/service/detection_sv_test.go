package detectionService

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"
	"time"

	"DetectorWeb/internal/api/detection"
	"DetectorWeb/internal/entity"
	"DetectorWeb/pkg/annotate"
	"DetectorWeb/pkg/log"
	"DetectorWeb/pkg/metrics"
	"DetectorWeb/pkg/predictor"
	"DetectorWeb/pkg/redis"
	"DetectorWeb/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type stubPredictor struct {
	resp     *predictor.PredictResponse
	err      error
	received []byte
}

func (p *stubPredictor) Predict(_ context.Context, image []byte) (*predictor.PredictResponse, error) {
	p.received = image
	return p.resp, p.err
}

func (p *stubPredictor) CheckHealth(context.Context) error { return p.err }

func (p *stubPredictor) PredictURL() string { return "http://model:5000/model/predict" }

type stubStorage struct {
	saved     map[string][]byte
	err       error
	olderThan time.Duration
}

func (s *stubStorage) Save(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[name] = data
	return "/static/img/temp/" + name, nil
}

func (s *stubStorage) Sweep(_ context.Context, olderThan time.Duration) (int, error) {
	s.olderThan = olderThan
	return len(s.saved), nil
}

type stubResults struct {
	data map[string][]byte
	ttl  time.Duration
}

func (r *stubResults) SetResult(_ context.Context, id string, payload []byte, ttl time.Duration) error {
	if r.data == nil {
		r.data = map[string][]byte{}
	}
	r.data[id] = payload
	r.ttl = ttl
	return nil
}

func (r *stubResults) GetResult(_ context.Context, id string) ([]byte, error) {
	payload, ok := r.data[id]
	if !ok {
		return nil, redis.ErrNotFound
	}
	return payload, nil
}

func (r *stubResults) Close() error { return nil }

func pngUpload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	service   IDetectionService
	predictor *stubPredictor
	storage   *stubStorage
	results   *stubResults
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, withResults bool) *fixture {
	t.Helper()

	a, err := annotate.New(annotate.StyleFilled, annotate.DefaultFontSize)
	require.NoError(t, err)

	f := &fixture{
		predictor: &stubPredictor{},
		storage:   &stubStorage{},
		metrics:   metrics.New(),
	}

	var results redis.IRedis
	if withResults {
		f.results = &stubResults{}
		results = f.results
	}

	f.service = NewDetectionService(
		log.NewLogger(),
		utils.New(),
		f.predictor,
		a,
		f.storage,
		results,
		f.metrics,
		Options{ResizeWidth: 64, Retention: 2 * time.Minute},
	)
	return f
}

func TestAnnotate(t *testing.T) {
	f := newFixture(t, true)
	f.predictor.resp = &predictor.PredictResponse{
		Status: "ok",
		Predictions: []entity.Detection{
			{LabelID: "1", Label: "person", Probability: 0.9, Box: []float64{0.1, 0.1, 0.9, 0.9}},
			{LabelID: "3", Label: "car", Probability: 0.5123, Box: []float64{0.5, 0.5, 0.6}},
		},
	}

	result, err := f.service.Annotate(context.Background(), pngUpload(t, 128, 32))
	require.NoError(t, err)

	assert.Len(t, result.ID, 26)
	assert.Equal(t, "/static/img/temp/"+result.ID+".jpg", result.ImageURL)
	assert.Equal(t, 64, result.Width)
	assert.Equal(t, 16, result.Height)
	assert.Equal(t, []string{"1 - person - 90.00%", "3 - car - 51.23%"}, result.Results)
	assert.Contains(t, f.storage.saved, result.ID+".jpg")

	sent, _, err := image.DecodeConfig(bytes.NewReader(f.predictor.received))
	require.NoError(t, err)
	assert.Equal(t, 64, sent.Width)
	assert.Equal(t, 16, sent.Height)

	assert.Equal(t, 2*time.Minute, f.results.ttl)
	stored, err := f.service.GetResult(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Results, stored.Results)
	assert.Equal(t, result.ImageURL, stored.ImageURL)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "detector_uploads_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAnnotateInvalidImage(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.Annotate(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, detection.ErrInvalidImage)
	assert.Nil(t, f.predictor.received)
}

func TestAnnotateNoObjects(t *testing.T) {
	f := newFixture(t, false)
	f.predictor.resp = &predictor.PredictResponse{Status: "ok"}

	_, err := f.service.Annotate(context.Background(), pngUpload(t, 10, 10))
	assert.ErrorIs(t, err, detection.ErrNoObjects)
	assert.Empty(t, f.storage.saved)
}

func TestAnnotatePredictionErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		message string
	}{
		{
			name:    "unreachable",
			err:     &predictor.RequestError{URL: "http://model:5000/model/predict", Err: errors.New("dial tcp: refused")},
			want:    detection.ErrPredictionFailed,
			message: "Prediction request to http://model:5000/model/predict failed: Check log for details.",
		},
		{
			name:    "status",
			err:     &predictor.StatusError{URL: "http://model:5000/model/predict", Code: 500, Body: "boom"},
			want:    detection.ErrPredictionStatus,
			message: "Prediction request returned status code 500 and message boom",
		},
		{
			name: "body",
			err:  errors.New("decode prediction response: unexpected EOF"),
			want: detection.ErrPredictionBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.predictor.err = tt.err

			_, err := f.service.Annotate(context.Background(), pngUpload(t, 10, 10))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestAnnotateStorageFailure(t *testing.T) {
	f := newFixture(t, false)
	f.predictor.resp = &predictor.PredictResponse{
		Predictions: []entity.Detection{{LabelID: "1", Label: "person", Probability: 0.9, Box: []float64{0, 0, 1, 1}}},
	}
	f.storage.err = errors.New("disk full")

	_, err := f.service.Annotate(context.Background(), pngUpload(t, 10, 10))
	assert.ErrorIs(t, err, detection.ErrInternalServerError)
}

func TestGetResult(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.service.GetResult(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, detection.ErrResultsDisabled)

	f = newFixture(t, true)
	_, err = f.service.GetResult(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, detection.ErrResultNotFound)
}

func TestSweepUsesRetention(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.service.Sweep(context.Background()))
	assert.Equal(t, 2*time.Minute, f.storage.olderThan)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	assert.NoError(t, f.service.Health(context.Background()))

	f.predictor.err = errors.New("connection refused")
	assert.ErrorIs(t, f.service.Health(context.Background()), detection.ErrModelUnavailable)
	assert.Equal(t, "http://model:5000/model/predict", f.service.ModelURL())
}
