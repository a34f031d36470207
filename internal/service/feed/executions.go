package feed

import (
	"context"
	"fmt"

	"TradeDash/internal/domain/models"
	drepo "TradeDash/internal/domain/repository"
	xhttp "TradeDash/pkg/http"
)

// ExecutionClient implements ExecutionFeed over the execution HTTP API.
type ExecutionClient struct {
	client  *xhttp.Client
	baseURL string
	path    string
}

// NewExecutionClient creates a processed signal feed adapter.
func NewExecutionClient(client *xhttp.Client, baseURL, path string) drepo.ExecutionFeed {
	if path == "" {
		path = "/signals/executions"
	}
	return &ExecutionClient{client: client, baseURL: baseURL, path: path}
}

func (c *ExecutionClient) Fetch(ctx context.Context, p models.FetchParams) ([]models.ExecutionSignal, error) {
	var out []models.ExecutionSignal
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + c.path,
		QueryParams: scopeParams(p),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("execution feed fetch: %w", err)
	}
	return out, nil
}
