package predictor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"DetectorWeb/internal/entity"
	contextPkg "DetectorWeb/pkg/context"
	"DetectorWeb/pkg/log"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

const (
	PredictPath  = "/model/predict"
	MetadataPath = "/model/metadata"

	DefaultThreshold = 0.5
	DefaultTimeout   = 30 * time.Second

	maxErrorBody = 512
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IPredictor interface {
	Predict(ctx context.Context, image []byte) (*PredictResponse, error)
	CheckHealth(ctx context.Context) error
	PredictURL() string
}

type PredictResponse struct {
	Status      string             `json:"status"`
	Predictions []entity.Detection `json:"predictions"`
}

// RequestError reports that the model endpoint could not be reached.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("prediction request to %s failed: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-200 answer from the model endpoint.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prediction request returned status code %d and message %s", e.Code, e.Body)
}

type Config struct {
	Endpoint  string
	Threshold float64
	Timeout   time.Duration
}

type client struct {
	baseURL    string
	predictURL string
	threshold  string
	timeout    time.Duration
}

func New(cfg Config) IPredictor {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &client{
		baseURL:    base,
		predictURL: base + PredictPath,
		threshold:  strconv.FormatFloat(cfg.Threshold, 'f', -1, 64),
		timeout:    cfg.Timeout,
	}
}

func (c *client) PredictURL() string {
	return c.predictURL
}

// Predict posts the encoded image as the multipart "image" part together with
// the "threshold" field and decodes the model's detections.
func (c *client) Predict(ctx context.Context, image []byte) (*PredictResponse, error) {
	timeout, err := c.timeoutFor(ctx)
	if err != nil {
		return nil, &RequestError{URL: c.predictURL, Err: err}
	}

	formFile := fiber.AcquireFormFile()
	defer fiber.ReleaseFormFile(formFile)
	formFile.Fieldname = "image"
	formFile.Name = "image.jpg"
	formFile.Content = image

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("threshold", c.threshold)

	agent := fiber.Post(c.predictURL)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(timeout)
	// FileData has to come first: MultipartForm writes the queued files.
	agent.FileData(formFile).MultipartForm(args)

	start := time.Now()
	code, body, err := c.send(ctx, agent)
	if err != nil {
		return nil, &RequestError{URL: c.predictURL, Err: err}
	}

	log.Debug(log.Fields{
		log.RequestIDKey: contextPkg.GetRequestID(ctx),
		"url":            c.predictURL,
		"status":         code,
		"latency_ms":     time.Since(start).Milliseconds(),
	}, "Prediction response received")

	if code != fiber.StatusOK {
		return nil, &StatusError{URL: c.predictURL, Code: code, Body: truncate(string(body), maxErrorBody)}
	}

	var result PredictResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}

	log.WithRequestID(ctx).WithField("response", string(body)).Debug("Prediction payload")

	return &result, nil
}

func (c *client) CheckHealth(ctx context.Context) error {
	timeout, err := c.timeoutFor(ctx)
	if err != nil {
		return err
	}

	url := c.baseURL + MetadataPath
	code, _, errs := fiber.Get(url).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return &RequestError{URL: url, Err: errors.Join(errs...)}
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("model service unhealthy: status %d", code)
	}

	return nil
}

type agentResult struct {
	code int
	body []byte
	err  error
}

// send runs the request and gives up as soon as ctx is done. The abandoned
// request still ends at the agent timeout.
func (c *client) send(ctx context.Context, agent *fiber.Agent) (int, []byte, error) {
	done := make(chan agentResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- agentResult{code: code, body: body, err: errors.Join(errs...)}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case res := <-done:
		return res.code, res.body, res.err
	}
}

// timeoutFor shortens the configured timeout to the context deadline, since
// the fasthttp agent cannot watch the context itself.
func (c *client) timeoutFor(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	return timeout, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
