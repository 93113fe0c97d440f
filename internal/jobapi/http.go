package jobapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meteosahel/tasktrack/internal/log"
)

// HTTPClientConfig configures the HTTP job API client.
type HTTPClientConfig struct {
	// BaseURL is the root of the remote job API (e.g. "https://api.example.org/v1").
	BaseURL string
	// AuthToken, when set, is sent as a bearer token on every request.
	AuthToken string
	// HTTPClient is the HTTP client used for all requests.
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *HTTPClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "jobapi.HTTPClient"})
	return nil
}

// HTTPClient is an HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     log.Logger
}

// NewHTTPClient creates a new HTTP job API client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		authToken:  cfg.AuthToken,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types ---

type subTaskStatusJSON struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type batchStatusJSON struct {
	Status   string `json:"status"`
	Progress struct {
		Success int `json:"success"`
		Failed  int `json:"failed"`
		Skipped int `json:"skipped"`
		Missing int `json:"missing"`
		Total   int `json:"total"`
	} `json:"progress"`
	Errors []string `json:"errors,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// GetSubTaskStatus returns the status of a single translation sub-job.
func (c *HTTPClient) GetSubTaskStatus(ctx context.Context, subTaskID string) (*SubTaskStatus, error) {
	u := fmt.Sprintf("%s/tasks/%s/status", c.baseURL, url.PathEscape(subTaskID))

	var status subTaskStatusJSON
	if err := c.getJSON(ctx, u, &status); err != nil {
		return nil, fmt.Errorf("could not get sub-task %s status: %w", subTaskID, err)
	}

	return &SubTaskStatus{
		Status: RemoteStatus(status.Status),
		Error:  status.Error,
	}, nil
}

// GetBatchStatus returns the aggregate status of a reprocess batch.
func (c *HTTPClient) GetBatchStatus(ctx context.Context, batchID string) (*BatchStatus, error) {
	u := fmt.Sprintf("%s/batches/%s/status", c.baseURL, url.PathEscape(batchID))

	var status batchStatusJSON
	if err := c.getJSON(ctx, u, &status); err != nil {
		return nil, fmt.Errorf("could not get batch %s status: %w", batchID, err)
	}

	return &BatchStatus{
		Status: RemoteStatus(status.Status),
		Progress: BatchProgress{
			Success: status.Progress.Success,
			Failed:  status.Progress.Failed,
			Skipped: status.Progress.Skipped,
			Missing: status.Progress.Missing,
			Total:   status.Progress.Total,
		},
		Errors: status.Errors,
		Error:  status.Error,
	}, nil
}

// RefreshBulletins asks the backend to reload the bulletin list view.
func (c *HTTPClient) RefreshBulletins(ctx context.Context) error {
	u := fmt.Sprintf("%s/bulletins/refresh", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, u)
	}

	c.logger.Debugf("Triggered bulletin list refresh")
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, u)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response from %s: %w", u, err)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
