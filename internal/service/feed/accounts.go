package feed

import (
	"context"
	"fmt"

	"TradeDash/internal/domain/models"
	drepo "TradeDash/internal/domain/repository"
	xhttp "TradeDash/pkg/http"
)

// AccountClient implements AccountFeed over the account service API.
type AccountClient struct {
	client  *xhttp.Client
	baseURL string
	path    string
}

// NewAccountClient creates an account linkage feed adapter.
func NewAccountClient(client *xhttp.Client, baseURL, path string) drepo.AccountFeed {
	if path == "" {
		path = "/accounts/linkages"
	}
	return &AccountClient{client: client, baseURL: baseURL, path: path}
}

func (c *AccountClient) Fetch(ctx context.Context, botID string) ([]models.AccountLinkage, error) {
	var out []models.AccountLinkage
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + c.path,
		QueryParams: map[string][]string{"bot_id": {botID}},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("account feed fetch: %w", err)
	}
	return out, nil
}
