package detectionHandler

import (
	"time"

	detectionService "DetectorWeb/internal/api/detection/service"
	"DetectorWeb/internal/middleware"
	"DetectorWeb/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	IndexView = "index"

	defaultRequestTimeout = 45 * time.Second
	wsReadTimeout         = 60 * time.Second
	wsWriteTimeout        = 10 * time.Second
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	requestTimeout   time.Duration
	maxUploadBytes   int64
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	requestTimeout time.Duration,
	maxUploadBytes int64,
) *DetectionHandler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		requestTimeout:   requestTimeout,
		maxUploadBytes:   maxUploadBytes,
	}
}

// StartPages mounts the upload page on the application root.
func (h *DetectionHandler) StartPages(srv fiber.Router) {
	srv.Get("/", h.Index)
	srv.Post("/", h.middleware.NewRateLimiter, h.Upload)
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	detect := srv.Group("/detect")
	detect.Post("", h.middleware.NewRateLimiter, h.Detect)
	detect.Use("/ws", wsMiddleware)
	detect.Get("/ws", websocket.New(h.handleWebSocket))

	srv.Get("/results/:id", h.GetResult)
	srv.Get("/health", h.Health)
}
