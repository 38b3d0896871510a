// Package registry records which site domains may use an API key.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/rideclick/pkg/logging"
)

// AnyDomain registered for a key allows every domain.
const AnyDomain = "*"

// UsageList is the Redis list that receives one entry per key use.
const UsageList = "api-key-usage"

var ErrBlankAPIKey = errors.New("registry: blank api key")

// Usage is one recorded use of an API key.
type Usage struct {
	TimeAt    int64  `json:"t,omitempty"`
	OriginURL string `json:"o,omitempty"`
}

// Registry stores each API key as a Redis set of allowed domains.
type Registry struct {
	redis  *redis.Client
	logger *logging.Logger
	now    func() time.Time
}

func New(redisClient *redis.Client, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{redis: redisClient, logger: logger.Component("registry"), now: time.Now}
}

// NewAPIKey registers domains under a freshly generated key.
func (r *Registry) NewAPIKey(ctx context.Context, domains ...string) (string, error) {
	apiKey := uuid.NewString()
	if err := r.RegisterDomains(ctx, apiKey, domains...); err != nil {
		return "", err
	}
	return apiKey, nil
}

// RegisterDomains adds domains to apiKey's set.
func (r *Registry) RegisterDomains(ctx context.Context, apiKey string, domains ...string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrBlankAPIKey
	}
	if len(domains) == 0 {
		return nil
	}
	members := make([]any, 0, len(domains))
	for _, d := range domains {
		members = append(members, d)
	}
	if err := r.redis.SAdd(ctx, apiKey, members...).Err(); err != nil {
		return fmt.Errorf("registry: register domains: %w", err)
	}
	r.logger.Info("domains registered", "api_key", apiKey, "count", len(domains))
	return nil
}

// FilterAllowedDomains splits domains by whether apiKey allows them. When the
// key allows AnyDomain every domain is allowed.
func (r *Registry) FilterAllowedDomains(ctx context.Context, apiKey string, domains ...string) (allowed, notAllowed []string, err error) {
	anyDomain, err := r.redis.SIsMember(ctx, apiKey, AnyDomain).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("registry: lookup %s: %w", apiKey, err)
	}
	if anyDomain {
		return append([]string(nil), domains...), nil, nil
	}

	members := make([]any, 0, len(domains))
	for _, d := range domains {
		members = append(members, d)
	}
	if len(members) == 0 {
		return nil, nil, nil
	}
	found, err := r.redis.SMIsMember(ctx, apiKey, members...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("registry: lookup %s: %w", apiKey, err)
	}
	for i, d := range domains {
		if found[i] {
			allowed = append(allowed, d)
		} else {
			notAllowed = append(notAllowed, d)
		}
	}
	r.logger.Debug("domains filtered", "api_key", apiKey, "allowed", allowed, "not_allowed", notAllowed)
	return allowed, notAllowed, nil
}

// AllowedDomain reports whether apiKey may be used from domain.
func (r *Registry) AllowedDomain(ctx context.Context, apiKey, domain string) (bool, error) {
	allowed, _, err := r.FilterAllowedDomains(ctx, apiKey, domain)
	if err != nil {
		return false, err
	}
	return len(allowed) > 0 && allowed[0] == domain, nil
}

// RecordUsage pushes a usage entry for originURL.
func (r *Registry) RecordUsage(ctx context.Context, originURL string) error {
	blob, err := json.Marshal(Usage{TimeAt: r.now().Unix(), OriginURL: originURL})
	if err != nil {
		return err
	}
	if err := r.redis.LPush(ctx, UsageList, blob).Err(); err != nil {
		return fmt.Errorf("registry: record usage: %w", err)
	}
	return nil
}

// RecentUsage returns up to n of the newest usage entries.
func (r *Registry) RecentUsage(ctx context.Context, n int64) ([]Usage, error) {
	raw, err := r.redis.LRange(ctx, UsageList, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("registry: read usage: %w", err)
	}
	out := make([]Usage, 0, len(raw))
	for _, s := range raw {
		var u Usage
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			r.logger.Warn("skipping malformed usage entry", "error", err)
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
