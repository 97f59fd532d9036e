package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

const providerTimeout = 15 * time.Second

// ProviderSubscription is the provider's view of a created subscription.
// ShortURL is the hosted checkout page the user completes payment on.
type ProviderSubscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ShortURL string `json:"short_url"`
}

// Provider creates and cancels subscriptions at the payment provider.
type Provider interface {
	CreateSubscription(ctx context.Context, planID, customerEmail string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string, atCycleEnd bool) error
}

var _ Provider = (*RESTProvider)(nil)

// RESTProvider talks to the provider's REST API with HTTP basic auth.
type RESTProvider struct {
	base   string
	keyID  string
	secret string
	client *http.Client
	log    zerolog.Logger
}

// NewRESTProvider creates a provider client from payment configuration.
func NewRESTProvider(cfg config.Payment) *RESTProvider {
	return &RESTProvider{
		base:   strings.TrimRight(cfg.APIBase, "/"),
		keyID:  cfg.KeyID,
		secret: cfg.KeySecret,
		client: &http.Client{Timeout: providerTimeout},
		log:    log.WithComponent("payment"),
	}
}

// CreateSubscription creates a provider subscription on the given plan
// and returns its id and checkout URL.
func (p *RESTProvider) CreateSubscription(ctx context.Context, planID, customerEmail string) (*ProviderSubscription, error) {
	body := map[string]any{
		"plan_id":         planID,
		"total_count":     12,
		"customer_notify": 1,
		"notes":           map[string]string{"email": customerEmail},
	}

	var sub ProviderSubscription
	if err := p.post(ctx, "/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, types.NewError(types.KindProviderDown, "payment provider returned no subscription id")
	}
	return &sub, nil
}

// CancelSubscription requests cancellation of a provider subscription.
// With atCycleEnd the subscription stays active until the paid period
// runs out.
func (p *RESTProvider) CancelSubscription(ctx context.Context, providerSubscriptionID string, atCycleEnd bool) error {
	cancelAt := 0
	if atCycleEnd {
		cancelAt = 1
	}
	path := "/subscriptions/" + url.PathEscape(providerSubscriptionID) + "/cancel"
	return p.post(ctx, path, map[string]any{"cancel_at_cycle_end": cancelAt}, nil)
}

// post sends a JSON request and decodes the response into out when out
// is non-nil. Transport failures and 5xx responses map to
// KindProviderDown so callers can surface a retryable condition.
func (p *RESTProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.keyID, p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.WrapError(types.KindProviderDown, "payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return types.NewError(types.KindProviderDown,
			fmt.Sprintf("payment provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.log.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Bytes("body", snippet).
			Msg("provider rejected request")
		return types.NewError(types.KindInternal, "payment provider rejected the request")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.WrapError(types.KindProviderDown, "failed to decode provider response", err)
	}
	return nil
}
