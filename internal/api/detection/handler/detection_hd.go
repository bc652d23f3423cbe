package detectionHandler

import (
	"context"
	"errors"

	"DetectorWeb/internal/api/detection"
	contextPkg "DetectorWeb/pkg/context"
	"DetectorWeb/pkg/handlerUtil"
	"DetectorWeb/pkg/log"

	"github.com/gofiber/fiber/v2"
)

// Detect is the JSON counterpart of Upload. The image is read from the
// "image" field, or "file" as the page form names it.
func (h *DetectionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing detection request")

	h.sweep(c, ctx.Path())

	data, err := h.readUpload(ctx, requestID, "image", "file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_upload")
	}

	result, err := h.detectionService.Annotate(c, data)
	if errors.Is(err, detection.ErrNoObjects) {
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.DetectResponse{
			Message: err.Error(),
		})
	}
	if err != nil {
		if errors.Is(c.Err(), context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "annotate")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.DetectResponse{
		Data: result,
	})
}

func (h *DetectionHandler) GetResult(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if err := h.validator.Var(id, "required,len=26,alphanum"); err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrBadRequest, ctx.Path(), "validate_id")
	}

	result, err := h.detectionService.GetResult(contextPkg.FromFiberCtx(ctx), id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_result")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.DetectResponse{
		Data: result,
	})
}

func (h *DetectionHandler) Health(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	if err := h.detectionService.Health(c); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": h.middleware.GetRequestID(ctx),
			"model":      h.detectionService.ModelURL(),
			"error":      err.Error(),
		}).Warn("Model service health check failed")
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(detection.HealthResponse{
			Status: "degraded",
			Model:  "down",
			Error:  err.Error(),
		})
	}

	return ctx.JSON(detection.HealthResponse{
		Status: "ok",
		Model:  "up",
	})
}
