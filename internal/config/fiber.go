package config

import (
	"errors"

	"DetectorWeb/web"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, bodyLimit int) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Object Detector",
			BodyLimit:         bodyLimit,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: logger.IsLevelEnabled(logrus.DebugLevel),
			Views:             web.Engine(),
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var fiberErr *fiber.Error
				if errors.As(err, &fiberErr) {
					code = fiberErr.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.WithField("path", c.Path()).Errorf("Unhandled error: %v", err)
				}
				return c.Status(code).JSON(fiber.Map{"error": err.Error()})
			},
		})

	return app
}
