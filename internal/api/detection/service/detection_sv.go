package detectionService

import (
	"context"
	"errors"
	"strconv"
	"time"

	"DetectorWeb/internal/api/detection"
	"DetectorWeb/internal/entity"
	contextPkg "DetectorWeb/pkg/context"
	"DetectorWeb/pkg/log"
	"DetectorWeb/pkg/metrics"
	"DetectorWeb/pkg/predictor"
	"DetectorWeb/pkg/redis"
	"DetectorWeb/pkg/response"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recordTTL is used for annotation records when outputs are never swept.
const recordTTL = time.Hour

// Annotate decodes the upload, resizes it, asks the model for detections and
// stores a copy with the detections drawn on.
func (s *detectionService) Annotate(ctx context.Context, image []byte) (*entity.AnnotationResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	img, err := s.utils.DecodeImage(image)
	if err != nil {
		s.observe(metrics.OutcomeBadImage)
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"size":       len(image),
			"error":      err.Error(),
		}).Warn("Failed to decode upload")
		return nil, detection.ErrInvalidImage
	}

	resized, err := s.utils.ResizeToWidth(img, s.opts.ResizeWidth)
	if err != nil {
		s.observe(metrics.OutcomeBadImage)
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to resize upload")
		return nil, detection.ErrInvalidImage
	}

	encoded, err := s.utils.EncodeJPEG(resized)
	if err != nil {
		s.observe(metrics.OutcomeBadImage)
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to encode upload")
		return nil, detection.ErrInvalidImage
	}

	prediction, err := s.predict(ctx, encoded)
	if err != nil {
		s.observe(metrics.OutcomeModelError)
		return nil, err
	}

	if len(prediction.Predictions) == 0 {
		s.observe(metrics.OutcomeNoObjects)
		return nil, detection.ErrNoObjects
	}

	annotated, drawn := s.annotator.Draw(resized, prediction.Predictions)

	output, err := s.utils.EncodeJPEG(annotated)
	if err != nil {
		s.observe(metrics.OutcomeServerError)
		return nil, response.Wrap(detection.ErrInternalServerError, "failed to encode annotated image")
	}

	now := time.Now()
	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.observe(metrics.OutcomeServerError)
		return nil, response.Wrap(detection.ErrInternalServerError, "failed to generate result id")
	}

	url, err := s.storage.Save(ctx, id+".jpg", output)
	if err != nil {
		s.observe(metrics.OutcomeServerError)
		traceID := log.ErrorWithTraceID(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}, "Failed to store annotated image")
		return nil, response.Wrap(detection.ErrInternalServerError, "failed to store annotated image (trace %s)", traceID)
	}

	bounds := annotated.Bounds()
	result := &entity.AnnotationResult{
		ID:         id,
		ImageURL:   url,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Detections: prediction.Predictions,
		Results:    make([]string, 0, len(prediction.Predictions)),
		CreatedAt:  now.UTC(),
	}
	for _, d := range prediction.Predictions {
		result.Results = append(result.Results, d.Summary())
	}

	s.record(ctx, result)

	s.observe(metrics.OutcomeAnnotated)
	if s.metrics != nil {
		s.metrics.AddDetections(drawn)
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"id":         id,
		"detections": len(prediction.Predictions),
		"drawn":      drawn,
	}).Info("Image annotated")

	return result, nil
}

func (s *detectionService) predict(ctx context.Context, encoded []byte) (*predictor.PredictResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	start := time.Now()
	prediction, err := s.predictor.Predict(ctx, encoded)
	elapsed := time.Since(start)

	var (
		reqErr    *predictor.RequestError
		statusErr *predictor.StatusError
	)
	switch {
	case err == nil:
		s.observeModel("200", elapsed)
		return prediction, nil
	case errors.As(err, &reqErr):
		s.observeModel("error", elapsed)
		log.ErrorWithTraceID(log.Fields{
			"request_id": requestID,
			"url":        reqErr.URL,
			"error":      reqErr.Err.Error(),
		}, "Prediction request failed")
		return nil, response.Wrap(detection.ErrPredictionFailed,
			"Prediction request to %s failed: Check log for details.", reqErr.URL)
	case errors.As(err, &statusErr):
		s.observeModel(strconv.Itoa(statusErr.Code), elapsed)
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"url":        statusErr.URL,
			"status":     statusErr.Code,
			"body":       statusErr.Body,
		}).Error("Prediction request returned an error status")
		return nil, response.Wrap(detection.ErrPredictionStatus,
			"Prediction request returned status code %d and message %s", statusErr.Code, statusErr.Body)
	default:
		s.observeModel("200", elapsed)
		log.ErrorWithTraceID(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}, "Prediction response could not be decoded")
		return nil, detection.ErrPredictionBody
	}
}

// record keeps the result for later lookup. Failures only cost the lookup.
func (s *detectionService) record(ctx context.Context, result *entity.AnnotationResult) {
	if s.results == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("Failed to marshal annotation record")
		return
	}

	ttl := s.opts.Retention
	if ttl <= 0 {
		ttl = recordTTL
	}

	if err := s.results.SetResult(ctx, result.ID, payload, ttl); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"id":         result.ID,
			"error":      err.Error(),
		}).Warn("Failed to store annotation record")
	}
}

// Sweep deletes annotated outputs older than the retention.
func (s *detectionService) Sweep(ctx context.Context) error {
	removed, err := s.storage.Sweep(ctx, s.opts.Retention)
	if removed > 0 {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"removed":    removed,
		}).Debug("Swept expired outputs")
	}
	return err
}

func (s *detectionService) GetResult(ctx context.Context, id string) (*entity.AnnotationResult, error) {
	if s.results == nil {
		return nil, detection.ErrResultsDisabled
	}

	payload, err := s.results.GetResult(ctx, id)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, detection.ErrResultNotFound
	} else if err != nil {
		return nil, err
	}

	var result entity.AnnotationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *detectionService) Health(ctx context.Context) error {
	if err := s.predictor.CheckHealth(ctx); err != nil {
		return response.Wrap(detection.ErrModelUnavailable, "model service unavailable: %v", err)
	}
	return nil
}

func (s *detectionService) ModelURL() string {
	return s.predictor.PredictURL()
}

func (s *detectionService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveUpload(outcome)
	}
}

func (s *detectionService) observeModel(status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveModelRequest(status, d)
	}
}
