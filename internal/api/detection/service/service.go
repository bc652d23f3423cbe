package detectionService

import (
	"context"
	"time"

	"DetectorWeb/internal/entity"
	"DetectorWeb/pkg/annotate"
	"DetectorWeb/pkg/metrics"
	"DetectorWeb/pkg/predictor"
	"DetectorWeb/pkg/redis"
	"DetectorWeb/pkg/storage"
	"DetectorWeb/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	DefaultResizeWidth = 1024
	DefaultRetention   = 5 * time.Minute
)

type IDetectionService interface {
	Annotate(ctx context.Context, image []byte) (*entity.AnnotationResult, error)
	Sweep(ctx context.Context) error
	GetResult(ctx context.Context, id string) (*entity.AnnotationResult, error)
	Health(ctx context.Context) error
	ModelURL() string
}

type Options struct {
	ResizeWidth int
	Retention   time.Duration
}

type detectionService struct {
	log       *logrus.Logger
	utils     utils.IUtils
	predictor predictor.IPredictor
	annotator annotate.IAnnotator
	storage   storage.IStorage
	results   redis.IRedis
	metrics   *metrics.Metrics
	opts      Options
}

// NewDetectionService wires the annotation pipeline. results may be nil, in
// which case annotation records are not kept.
func NewDetectionService(
	log *logrus.Logger,
	utils utils.IUtils,
	predictor predictor.IPredictor,
	annotator annotate.IAnnotator,
	storage storage.IStorage,
	results redis.IRedis,
	metrics *metrics.Metrics,
	opts Options,
) IDetectionService {
	if opts.ResizeWidth <= 0 {
		opts.ResizeWidth = DefaultResizeWidth
	}
	if opts.Retention < 0 {
		opts.Retention = DefaultRetention
	}

	return &detectionService{
		log:       log,
		utils:     utils,
		predictor: predictor,
		annotator: annotator,
		storage:   storage,
		results:   results,
		metrics:   metrics,
		opts:      opts,
	}
}
