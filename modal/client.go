// Package modal calls the external AI video processing endpoint
package modal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// StatusError is returned when the endpoint answers with a non 2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("processing endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func New(endpoint, token string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("no processing endpoint provided")
	}

	if token == "" {
		return nil, errors.New("no processing token provided")
	}

	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// NewFromConfig builds the client from the processing.* config keys
func NewFromConfig() (*Client, error) {
	return New(
		viper.GetString("processing.endpoint"),
		viper.GetString("processing.token"),
		viper.GetDuration("processing.timeout"),
	)
}

type processRequest struct {
	S3Key string `json:"s3_key"`
}

// ProcessVideo asks the endpoint to cut clips out of the object at s3Key.
// The endpoint writes its output next to the source object, the response
// body carries nothing the caller needs.
func (c *Client) ProcessVideo(ctx context.Context, s3Key string) error {
	body, err := json.Marshal(processRequest{S3Key: s3Key})
	if err != nil {
		return fmt.Errorf("failed to encode request, %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request, %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	zap.L().Debug("Calling processing endpoint", zap.String("s3_key", s3Key))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("processing request failed, %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	zap.L().Info("Processing endpoint finished",
		zap.String("s3_key", s3Key),
		zap.Duration("took", time.Since(start)))
	return nil
}
