package detectionHandler

import (
	"context"
	"errors"
	"io"

	"DetectorWeb/internal/api/detection"
	contextPkg "DetectorWeb/pkg/context"
	"DetectorWeb/pkg/handlerUtil"
	"DetectorWeb/pkg/log"
	"DetectorWeb/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// Index renders the empty upload form.
func (h *DetectionHandler) Index(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	h.sweep(c, ctx.Path())

	return h.render(ctx, detection.PageData{})
}

// Upload handles the form post: the "file" field is annotated and the page is
// rendered with either the annotated image or an error message.
func (h *DetectionHandler) Upload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.sweep(c, ctx.Path())

	data, err := h.readUpload(ctx, requestID, "file")
	if err != nil {
		return h.render(ctx, detection.PageData{
			ErrorMsg: errHandler.Message(requestID, err, ctx.Path(), "read_upload"),
		})
	}

	result, err := h.detectionService.Annotate(c, data)
	if err != nil {
		return h.render(ctx, detection.PageData{
			ErrorMsg: errHandler.Message(requestID, err, ctx.Path(), "annotate"),
		})
	}

	return h.render(ctx, detection.PageData{
		ImageName: result.ImageURL,
		Results:   result.Results,
	})
}

func (h *DetectionHandler) render(ctx *fiber.Ctx, data detection.PageData) error {
	return ctx.Status(fiber.StatusOK).Render(IndexView, data)
}

// sweep drops expired outputs before serving a page. A failed sweep never
// fails the request.
func (h *DetectionHandler) sweep(c context.Context, path string) {
	if err := h.detectionService.Sweep(c); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"path":       path,
			"error":      err.Error(),
		}).Warn("Failed to sweep expired outputs")
	}
}

// readUpload returns the content of the first present form file among fields.
func (h *DetectionHandler) readUpload(ctx *fiber.Ctx, requestID string, fields ...string) ([]byte, error) {
	for _, field := range fields {
		file, err := ctx.FormFile(field)
		if err != nil {
			continue
		}

		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		if err := h.utils.ValidateImageFile(file); err != nil {
			if errors.Is(err, utils.ErrFileTooLarge) {
				return nil, detection.ErrFileTooLarge
			}
			return nil, detection.ErrInvalidImage
		}

		content, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer content.Close()

		return io.ReadAll(content)
	}

	return nil, detection.ErrNoImage
}
