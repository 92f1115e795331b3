// Package billing talks to the hosted billing provider that owns customers,
// subscriptions and products. Users are linked to customers by external id.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the provider answers 404.
var ErrNotFound = errors.New("billing resource not found")

type Price struct {
	ID          string `json:"id"`
	AmountType  string `json:"amount_type"`
	PriceAmount int64  `json:"price_amount"`
	Currency    string `json:"price_currency"`
	Interval    string `json:"recurring_interval"`
	IsArchived  bool   `json:"is_archived"`
}

type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsRecurring bool              `json:"is_recurring"`
	IsArchived  bool              `json:"is_archived"`
	Metadata    map[string]string `json:"metadata"`
	Prices      []Price           `json:"prices"`
}

type Subscription struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	ProductID         string     `json:"product_id"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	RecurringInterval string     `json:"recurring_interval"`
}

// Provider is the subset of the billing API the backend depends on.
type Provider interface {
	ActiveSubscriptions(ctx context.Context, externalCustomerID string) ([]Subscription, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Client is an HTTP Provider.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient builds a billing client. baseURL should include the API version
// prefix, e.g. "https://api.polar.sh/v1".
func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("billing base url required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("billing access token required")
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type customerState struct {
	ActiveSubscriptions []Subscription `json:"active_subscriptions"`
}

// ActiveSubscriptions lists the customer's active subscriptions. A missing
// customer has none.
func (c *Client) ActiveSubscriptions(ctx context.Context, externalCustomerID string) ([]Subscription, error) {
	var state customerState
	err := c.get(ctx, "/customers/external/"+url.PathEscape(externalCustomerID)+"/state", nil, &state)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state.ActiveSubscriptions, nil
}

// GetProduct fetches one product including its metadata.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	var p Product
	if err := c.get(ctx, "/products/"+url.PathEscape(productID), nil, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

type productList struct {
	Items []Product `json:"items"`
}

// ListProducts returns the non-archived recurring products, for the pricing page.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var list productList
	query := url.Values{}
	query.Set("is_archived", "false")
	query.Set("is_recurring", "true")
	query.Set("sorting", "price_amount")
	if err := c.get(ctx, "/products/", query, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail any    `json:"detail"`
			Error  string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" && errResp.Detail != nil {
			msg = fmt.Sprint(errResp.Detail)
		}
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("billing api error: %s", msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode billing response: %w", err)
	}
	return nil
}
