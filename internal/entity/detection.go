package entity

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// LabelID is the model's class id. Some model builds emit it as a string and
// others as a number, so both decode into the same string form.
type LabelID string

func (l *LabelID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("label_id: %w", err)
		}
		*l = LabelID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("label_id: unexpected value %s", data)
	}
	*l = LabelID(data)
	return nil
}

// Detection is a single object reported by the model. Box holds
// ymin, xmin, ymax, xmax normalized to [0,1].
type Detection struct {
	LabelID     LabelID   `json:"label_id"`
	Label       string    `json:"label"`
	Probability float64   `json:"probability"`
	Box         []float64 `json:"detection_box"`
}

// Summary formats the detection as "<label_id> - <label> - <prob>%".
func (d Detection) Summary() string {
	return fmt.Sprintf("%s - %s - %.2f%%", d.LabelID, d.Label, 100*d.Probability)
}

type AnnotationResult struct {
	ID         string      `json:"id"`
	ImageURL   string      `json:"image_url"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Detections []Detection `json:"detections"`
	Results    []string    `json:"results"`
	CreatedAt  time.Time   `json:"created_at"`
}
