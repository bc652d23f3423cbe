package detection

import "DetectorWeb/internal/entity"

type DetectResponse struct {
	Data    *entity.AnnotationResult `json:"data,omitempty"`
	Message string                   `json:"message,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Error  string `json:"error,omitempty"`
}

// PageData is the view model of the index template.
type PageData struct {
	ErrorMsg  string
	ImageName string
	Results   []string
}

type FrameError struct {
	Error string `json:"error"`
}
