package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/wolfman30/rideclick/pkg/logging"
)

// Redis hashes used by Store.
const (
	NonceTable = "nonce-table"
	StateTable = "state-table"
	TokenTable = "oauth2-table"
)

var (
	ErrCacheMiss     = errors.New("no such key")
	ErrNonceMismatch = errors.New("nonce issued for a different api key")
)

// Store keeps nonces, OAuth2 states and tokens in Redis hashes.
type Store struct {
	redis  *redis.Client
	logger *logging.Logger
}

func NewStore(redisClient *redis.Client, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{redis: redisClient, logger: logger.Component("nonce")}
}

// Issue mints a nonce for apiKey.
func (s *Store) Issue(ctx context.Context, apiKey string) (string, error) {
	n := uuid.NewString()
	if err := s.redis.HSet(ctx, NonceTable, n, apiKey).Err(); err != nil {
		return "", fmt.Errorf("nonce: issue: %w", err)
	}
	return n, nil
}

// IssuedFor returns the API key a nonce was issued for.
func (s *Store) IssuedFor(ctx context.Context, nonce string) (string, error) {
	return s.hget(ctx, NonceTable, nonce)
}

// ValidateAndDestroy consumes nonce if it was issued for apiKey. A nonce
// issued for another key is still consumed.
func (s *Store) ValidateAndDestroy(ctx context.Context, apiKey, nonce string) error {
	issuedFor, err := s.hpop(ctx, NonceTable, nonce)
	if err != nil {
		return err
	}
	if issuedFor != apiKey {
		s.logger.Warn("nonce presented with wrong api key", "api_key", apiKey)
		return ErrNonceMismatch
	}
	return nil
}

// SetState binds an OAuth2 state value to nonce.
func (s *Store) SetState(ctx context.Context, state, nonce string) error {
	if err := s.redis.HSet(ctx, StateTable, state, nonce).Err(); err != nil {
		return fmt.Errorf("nonce: set state: %w", err)
	}
	return nil
}

// PopState returns and forgets the nonce bound to state.
func (s *Store) PopState(ctx context.Context, state string) (string, error) {
	return s.hpop(ctx, StateTable, state)
}

// SaveToken stores tok under nonce.
func (s *Store) SaveToken(ctx context.Context, nonce string, tok *oauth2.Token) error {
	blob, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, TokenTable, nonce, blob).Err(); err != nil {
		return fmt.Errorf("nonce: save token: %w", err)
	}
	return nil
}

// Token returns the token stored under nonce.
func (s *Store) Token(ctx context.Context, nonce string) (*oauth2.Token, error) {
	raw, err := s.hget(ctx, TokenTable, nonce)
	if err != nil {
		return nil, err
	}
	return parseToken(raw)
}

// PopToken returns and forgets the token stored under nonce.
func (s *Store) PopToken(ctx context.Context, nonce string) (*oauth2.Token, error) {
	raw, err := s.hpop(ctx, TokenTable, nonce)
	if err != nil {
		return nil, err
	}
	return parseToken(raw)
}

func parseToken(raw string) (*oauth2.Token, error) {
	tok := new(oauth2.Token)
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("nonce: parse token: %w", err)
	}
	return tok, nil
}

func (s *Store) hget(ctx context.Context, table, key string) (string, error) {
	v, err := s.redis.HGet(ctx, table, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("nonce: read %s: %w", table, err)
	}
	if v == "" {
		return "", ErrCacheMiss
	}
	return v, nil
}

// hpop reads and deletes one hash field atomically.
func (s *Store) hpop(ctx context.Context, table, key string) (string, error) {
	var get *redis.StringCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, table, key)
		pipe.HDel(ctx, table, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("nonce: pop %s: %w", table, err)
	}
	v := get.Val()
	if v == "" {
		return "", ErrCacheMiss
	}
	return v, nil
}
