package config

import (
	"context"
	"fmt"
	"time"

	detectionHandler "DetectorWeb/internal/api/detection/handler"
	detectionService "DetectorWeb/internal/api/detection/service"
	"DetectorWeb/internal/middleware"
	"DetectorWeb/pkg/annotate"
	"DetectorWeb/pkg/metrics"
	"DetectorWeb/pkg/predictor"
	"DetectorWeb/pkg/redis"
	"DetectorWeb/pkg/s3"
	"DetectorWeb/pkg/storage"
	"DetectorWeb/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	env        *Env
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	predictor  predictor.IPredictor
	annotator  annotate.IAnnotator
	storage    storage.IStorage
	results    redis.IRedis
	metrics    *metrics.Metrics
	pages      []pageHandler
	handlers   []handler
}

type handler interface {
	Start(srv fiber.Router)
}

type pageHandler interface {
	StartPages(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if server.predictor == nil || server.annotator == nil || server.storage == nil {
		return nil, fmt.Errorf("predictor, annotator and storage are required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.env == nil {
			return fmt.Errorf("logger and configuration must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			RequestsPerSecond: s.env.RateLimitRPS,
			Burst:             s.env.RateLimitBurst,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("configuration must be initialized before utils")
		}
		s.utils = utils.NewWithLimit(s.env.MaxUploadBytes())
		return nil
	}
}

func WithPredictor() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("configuration must be initialized before predictor")
		}
		s.predictor = predictor.New(predictor.Config{
			Endpoint:  s.env.MLEndpoint,
			Threshold: s.env.Threshold,
			Timeout:   s.env.MLTimeout,
		})
		return nil
	}
}

func WithAnnotator() ServerOption {
	return func(s *Server) error {
		if s.env == nil {
			return fmt.Errorf("configuration must be initialized before annotator")
		}
		style, err := annotate.ParseStyle(s.env.DrawStyle)
		if err != nil {
			return err
		}
		a, err := annotate.New(style, annotate.DefaultFontSize)
		if err != nil {
			return fmt.Errorf("failed to create annotator: %w", err)
		}
		s.annotator = a
		return nil
	}
}

func WithStorage() ServerOption {
	return func(s *Server) error {
		if s.env == nil || s.log == nil {
			return fmt.Errorf("logger and configuration must be initialized before storage")
		}

		switch storage.Driver(s.env.StorageDriver) {
		case storage.DriverS3:
			client, err := s3.New(s3.ConfigFromEnv(), s.log)
			if err != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
				return fmt.Errorf("failed to create S3 client: %w", err)
			}
			s.storage = client
		default:
			prefix, err := storage.URLPrefix(s.env.StaticDir, s.env.OutputDir, "/static")
			if err != nil {
				return fmt.Errorf("invalid output dir: %w", err)
			}
			local, err := storage.NewLocal(s.env.OutputDir, prefix)
			if err != nil {
				return fmt.Errorf("failed to create local storage: %w", err)
			}
			s.storage = local
		}
		return nil
	}
}

// WithRedisServer enables annotation records when REDIS_ADDRESS is set.
func WithRedisServer() ServerOption {
	return func(s *Server) error {
		if s.env == nil || s.log == nil {
			return fmt.Errorf("logger and configuration must be initialized before redis")
		}
		if s.env.RedisAddress == "" {
			s.log.Info("REDIS_ADDRESS not set, annotation records disabled")
			return nil
		}
		s.results = redis.New(redis.Config{
			Address:  s.env.RedisAddress,
			Password: s.env.RedisPassword,
			DB:       s.env.RedisDB,
		}, s.log)
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.validator == nil {
		s.validator = NewValidator()
	}
	if s.utils == nil {
		s.utils = utils.NewWithLimit(s.env.MaxUploadBytes())
	}
	if s.middleware == nil {
		s.middleware = middleware.New(s.log, middleware.Config{})
	}

	detectionServices := detectionService.NewDetectionService(
		s.log,
		s.utils,
		s.predictor,
		s.annotator,
		s.storage,
		s.results,
		s.metrics,
		detectionService.Options{
			ResizeWidth: s.env.ResizeWidth,
			Retention:   s.env.OutputRetention,
		},
	)
	detectionHandlers := detectionHandler.New(
		s.log,
		s.validator,
		s.middleware,
		detectionServices,
		s.utils,
		s.env.RequestTimeout(),
		s.env.MaxUploadBytes(),
	)

	s.pages = append(s.pages, detectionHandlers)
	s.handlers = append(s.handlers, detectionHandlers)
}

func (s *Server) Routes() *fiber.App {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.engine.Static("/static", s.env.StaticDir)
	if s.metrics != nil {
		s.engine.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	for _, p := range s.pages {
		p.StartPages(s.engine)
	}

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	return s.engine
}

// CheckModel logs whether the model endpoint answers. The app still starts
// when it does not.
func (s *Server) CheckModel(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.predictor.CheckHealth(ctx); err != nil {
		s.log.Warnf("ML service not available at %s: %v", s.env.MLEndpoint, err)
		return
	}
	s.log.Infof("ML service available at %s", s.env.MLEndpoint)
}

func (s *Server) Run() error {
	s.Routes()

	s.log.Infof("Starting server on :%d, model endpoint %s", s.env.Port, s.predictor.PredictURL())
	return s.engine.Listen(fmt.Sprintf(":%d", s.env.Port))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)
	if s.results != nil {
		if closeErr := s.results.Close(); closeErr != nil {
			s.log.Warnf("Failed to close redis client: %v", closeErr)
		}
	}
	return err
}
