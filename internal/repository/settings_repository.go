package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// endpointKey is the global slot for the remote endpoint URL.
const endpointKey = "megatrack_api_url"

// ErrInvalidEndpoint is returned when a URL cannot be used as a remote endpoint.
var ErrInvalidEndpoint = errors.New("invalid endpoint url")

// SettingsRepository holds the process wide endpoint configuration.
// No stored URL means the planner runs in local-only mode.
type SettingsRepository struct {
	kv *KVRepository
}

func NewSettingsRepository(kv *KVRepository) *SettingsRepository {
	return &SettingsRepository{kv: kv}
}

// EndpointURL returns the configured URL, or "" when none is set.
func (r *SettingsRepository) EndpointURL(ctx context.Context) (string, error) {
	raw, _, err := r.kv.Get(ctx, endpointKey)
	if err != nil {
		return "", fmt.Errorf("endpoint url: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// SetEndpointURL stores an absolute http(s) URL. A blank value clears it.
func (r *SettingsRepository) SetEndpointURL(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.ClearEndpointURL(ctx)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidEndpoint, raw)
	}
	return r.kv.Put(ctx, endpointKey, raw)
}

func (r *SettingsRepository) ClearEndpointURL(ctx context.Context) error {
	return r.kv.Delete(ctx, endpointKey)
}
