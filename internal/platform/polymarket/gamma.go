package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// event and market discovery.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma")),
	}
}

// DiscoveryParams bounds the basket crawl.
type DiscoveryParams struct {
	MinOutcomes int
	MaxOutcomes int
	PageSize    int
	MaxPages    int
}

// ListBaskets crawls open events and returns those whose market count falls
// within [MinOutcomes, MaxOutcomes] as tradable baskets. Events with closed,
// inactive, or tokenless markets are skipped: a basket missing one leg no
// longer partitions its event.
func (g *GammaClient) ListBaskets(ctx context.Context, params DiscoveryParams) ([]domain.Basket, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	var baskets []domain.Basket
	for page := 0; page < maxPages; page++ {
		events, err := g.getEvents(ctx, pageSize, page*pageSize)
		if err != nil {
			return nil, fmt.Errorf("polymarket/gamma: list baskets page %d: %w", page, err)
		}
		if len(events) == 0 {
			break
		}

		for i := range events {
			ev := &events[i]
			if ev.Closed || !bool(ev.Active) {
				continue
			}
			if len(ev.Markets) < params.MinOutcomes || len(ev.Markets) > params.MaxOutcomes {
				continue
			}
			basket, ok := ev.ToDomainBasket()
			if !ok {
				g.logger.Debug("skipping event with unusable markets",
					slog.String("event_id", ev.ID),
				)
				continue
			}
			baskets = append(baskets, basket)
		}

		if len(events) < pageSize {
			break
		}
	}

	g.logger.Info("basket discovery complete",
		slog.Int("baskets", len(baskets)),
	)
	return baskets, nil
}

// GetEvent returns a single event by its ID.
func (g *GammaClient) GetEvent(ctx context.Context, id string) (APIEvent, error) {
	path := fmt.Sprintf("/events/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: get event %s: %w", id, err)
	}

	var event APIEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: decode event: %w", err)
	}

	return event, nil
}

// getEvents returns one page of open events.
func (g *GammaClient) getEvents(ctx context.Context, limit, offset int) ([]APIEvent, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	return events, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
