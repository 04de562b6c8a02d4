package describe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultThreshold is the minimum detection score kept as a label.
const DefaultThreshold = 0.7

// HTTPDescriber posts images to an inference service that answers with
//
//	{"caption": "...", "detections": [{"label": "dog", "score": 0.93}]}
type HTTPDescriber struct {
	url       string
	threshold float64
	timeout   time.Duration
}

// NewHTTPDescriber builds a describer for the endpoint at url. A threshold
// outside (0, 1] falls back to DefaultThreshold.
func NewHTTPDescriber(url string, threshold float64, timeout time.Duration) *HTTPDescriber {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPDescriber{url: url, threshold: threshold, timeout: timeout}
}

type detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type inferenceResponse struct {
	Caption    string      `json:"caption"`
	Detections []detection `json:"detections"`
}

func (d *HTTPDescriber) Describe(ctx context.Context, img Image) (Description, error) {
	if d.url == "" {
		return Description{}, errors.New("describer url not configured")
	}
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return Description{}, err
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}

	agent := fiber.Post(d.url)
	agent.Set(fiber.HeaderContentType, contentType)
	agent.Set("X-Filename", img.Filename)
	agent.Body(img.Data)
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Description{}, fmt.Errorf("describe %s: %w", img.Filename, errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return Description{}, fmt.Errorf("describe %s: inference service returned %d", img.Filename, code)
	}

	var resp inferenceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Description{}, fmt.Errorf("describe %s: decode response: %w", img.Filename, err)
	}

	labels := make([]string, 0, len(resp.Detections))
	for _, det := range resp.Detections {
		if det.Score > d.threshold {
			labels = append(labels, det.Label)
		}
	}
	return NewDescription(resp.Caption, labels), nil
}
