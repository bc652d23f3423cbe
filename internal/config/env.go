package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/go-playground/validator/v10"
)

// Env is the runtime configuration. Values come from the environment (and a
// .env file when present) and may be overridden on the command line.
type Env struct {
	Port            int           `validate:"min=1,max=65535"`
	MLEndpoint      string        `validate:"required,url"`
	Threshold       float64       `validate:"gte=0,lte=1"`
	MLTimeout       time.Duration `validate:"gt=0"`
	ResizeWidth     int           `validate:"min=16,max=8192"`
	DrawStyle       string        `validate:"oneof=filled outlined"`
	StaticDir       string        `validate:"required"`
	OutputDir       string        `validate:"required"`
	OutputRetention time.Duration `validate:"gte=0"`
	StorageDriver   string        `validate:"oneof=local s3"`
	RedisAddress    string
	RedisPassword   string
	RedisDB         int           `validate:"gte=0"`
	RateLimitRPS    float64       `validate:"gt=0"`
	RateLimitBurst  int           `validate:"gt=0"`
	MaxUploadMB     int           `validate:"min=1,max=512"`
}

func (e *Env) MaxUploadBytes() int64 {
	return int64(e.MaxUploadMB) * 1024 * 1024
}

// multipartOverhead lets uploads just over the limit reach the handlers, which
// report them with their own message.
const multipartOverhead = 1 << 20

func (e *Env) BodyLimit() int {
	return int(e.MaxUploadBytes()) + multipartOverhead
}

// RequestTimeout leaves room for decoding and drawing around the model call.
func (e *Env) RequestTimeout() time.Duration {
	return e.MLTimeout + 15*time.Second
}

func NewValidator() *validator.Validate {
	return validator.New()
}

// LoadEnv reads the environment, applies command-line overrides from args
// (os.Args layout, program name first) and validates the result.
func LoadEnv(args []string, lookup func(string) string) (*Env, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	r := envReader{lookup: lookup}

	env := &Env{
		Port:            r.getInt("APP_PORT", 8090),
		MLEndpoint:      r.getString("ML_ENDPOINT", "http://localhost:5000"),
		Threshold:       r.getFloat("ML_THRESHOLD", 0.5),
		MLTimeout:       r.getDuration("ML_TIMEOUT", 30*time.Second),
		ResizeWidth:     r.getInt("RESIZE_WIDTH", 1024),
		DrawStyle:       r.getString("DRAW_STYLE", "filled"),
		StaticDir:       r.getString("STATIC_DIR", "static"),
		OutputDir:       r.getString("OUTPUT_DIR", "static/img/temp"),
		OutputRetention: r.getDuration("OUTPUT_RETENTION", 5*time.Minute),
		StorageDriver:   r.getString("STORAGE_DRIVER", "local"),
		RedisAddress:    r.getString("REDIS_ADDRESS", ""),
		RedisPassword:   r.getString("REDIS_PASSWORD", ""),
		RedisDB:         r.getInt("REDIS_DB", 0),
		RateLimitRPS:    r.getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  r.getInt("RATE_LIMIT_BURST", 20),
		MaxUploadMB:     r.getInt("MAX_UPLOAD_MB", 10),
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(r.errs, "; "))
	}

	if err := env.applyFlags(args); err != nil {
		return nil, err
	}

	env.MLEndpoint = strings.TrimRight(env.MLEndpoint, "/")

	if err := NewValidator().Struct(env); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return env, nil
}

func (e *Env) applyFlags(args []string) error {
	if len(args) == 0 {
		return nil
	}

	parser := argparse.NewParser("detector", "Object detector web app")
	port := parser.Int("p", "port", &argparse.Options{Help: "port to run the web app on", Default: e.Port})
	endpoint := parser.String("m", "ml-endpoint", &argparse.Options{Help: "model api server", Default: e.MLEndpoint})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "detection threshold sent to the model, in [0,1]", Default: e.Threshold})
	drawStyle := parser.Selector("s", "draw-style", []string{"filled", "outlined"}, &argparse.Options{Help: "label drawing style", Default: e.DrawStyle})

	if err := parser.Parse(args); err != nil {
		return fmt.Errorf("%s", parser.Usage(err))
	}

	e.Port = *port
	e.MLEndpoint = *endpoint
	e.Threshold = *threshold
	e.DrawStyle = *drawStyle

	return nil
}

type envReader struct {
	lookup func(string) string
	errs   []string
}

func (r *envReader) getString(key, def string) string {
	if v := strings.TrimSpace(r.lookup(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (r *envReader) getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a number", key, v))
		return def
	}
	return f
}

func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}
