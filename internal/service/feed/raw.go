package feed

import (
	"context"
	"fmt"

	"TradeDash/internal/domain/models"
	drepo "TradeDash/internal/domain/repository"
	xhttp "TradeDash/pkg/http"
)

// RawClient implements RawFeed over the broker signal HTTP API.
type RawClient struct {
	client  *xhttp.Client
	baseURL string
	path    string
}

// NewRawClient creates a raw signal feed adapter.
func NewRawClient(client *xhttp.Client, baseURL, path string) drepo.RawFeed {
	if path == "" {
		path = "/signals/raw"
	}
	return &RawClient{client: client, baseURL: baseURL, path: path}
}

func (c *RawClient) Fetch(ctx context.Context, p models.FetchParams) ([]models.RawSignal, error) {
	var out []models.RawSignal
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + c.path,
		QueryParams: scopeParams(p),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("raw feed fetch: %w", err)
	}
	return out, nil
}

// scopeParams maps fetch params to the feed API query. OwnerScope is
// omitted in admin view; the feed then returns every owner for the bot.
func scopeParams(p models.FetchParams) map[string][]string {
	q := map[string][]string{
		"bot_id": {p.BotID},
	}
	if p.AdminView {
		q["admin_view"] = []string{"true"}
	} else if p.OwnerScope != "" {
		q["owner_scope"] = []string{p.OwnerScope}
	}
	return q
}
