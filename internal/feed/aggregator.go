package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hearthledger/internal/logging"
)

// AggregatorClient pulls the normalized transaction feed for a connected
// bank account from the aggregator API. Connection lifecycle (consent,
// polling jobs) lives with the aggregator; this client only reads the
// transaction feed and owns the credential cache.
type AggregatorClient struct {
	baseURL string
	http    *http.Client
	tokens  *TokenCache
	logger  logging.Logger
}

// NewAggregatorClient creates a feed client for the given base URL.
func NewAggregatorClient(baseURL, apiKey string, timeout time.Duration, logger logging.Logger) *AggregatorClient {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient := &http.Client{Timeout: timeout}

	client := &AggregatorClient{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
	client.tokens = NewTokenCache(func(ctx context.Context) (string, time.Time, error) {
		return client.authenticate(ctx, apiKey)
	})
	return client
}

// authResponse is the aggregator's token endpoint payload.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *AggregatorClient) authenticate(ctx context.Context, apiKey string) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	expiry := time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	return auth.AccessToken, expiry, nil
}

// transactionsResponse is the aggregator's transaction feed payload.
type transactionsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		PostDate    string `json:"postDate"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Balance     string `json:"balance"`
	} `json:"data"`
}

// FetchRows pulls the transaction feed for one connected account and
// normalizes it to feed rows. The aggregator reports signed amounts;
// rows keep them in the single Amount column.
func (c *AggregatorClient) FetchRows(ctx context.Context, accountRef string) ([]Row, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregator auth: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/transactions", c.baseURL, url.PathEscape(accountRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, fmt.Errorf("feed request: unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}

	var payload transactionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	rows := make([]Row, 0, len(payload.Data))
	for _, entry := range payload.Data {
		rows = append(rows, Row{
			Date:        entry.PostDate,
			Description: entry.Description,
			Amount:      entry.Amount,
			Balance:     entry.Balance,
			ExternalID:  entry.ID,
		})
	}

	c.logger.WithFields(
		logging.Field{Key: "account", Value: accountRef},
		logging.Field{Key: "rows", Value: len(rows)},
	).Info("Fetched aggregator feed")
	return rows, nil
}
