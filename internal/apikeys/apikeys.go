// Package apikeys resolves provider credentials for a user: a key the user
// stored wins over the instance-wide key from configuration.
package apikeys

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
)

// Providers with credentials.
const (
	ProviderReplicate  = "replicate"
	ProviderElevenLabs = "elevenlabs"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
)

// Providers lists every accepted provider name.
var Providers = []string{ProviderReplicate, ProviderElevenLabs, ProviderGoogle, ProviderOpenRouter}

// Store persists per-user keys.
type Store interface {
	APIKey(ctx context.Context, userID, provider string) (string, error)
	SetAPIKey(ctx context.Context, userID, provider, key string) error
	DeleteAPIKey(ctx context.Context, userID, provider string) error
	ConfiguredProviders(ctx context.Context, userID string) ([]string, error)
}

// Service looks up keys.
type Service struct {
	store    Store
	fallback map[string]string
}

// New builds a service that falls back to keys configured in cfg.
func New(store Store, cfg *config.Config) *Service {
	fallback := map[string]string{}
	if cfg != nil {
		fallback[ProviderReplicate] = cfg.Generation.APIToken
		fallback[ProviderElevenLabs] = cfg.Narration.APIKey
		fallback[ProviderGoogle] = cfg.Refiner.GeminiAPIKey
		fallback[ProviderOpenRouter] = cfg.Refiner.APIKey
	}
	return &Service{store: store, fallback: fallback}
}

// NormalizeProvider lowercases and validates a provider name.
func NormalizeProvider(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !slices.Contains(Providers, provider) {
		return "", services.Wrap(services.ErrValidation, "apikeys", "provider",
			fmt.Sprintf("unknown provider %q (want one of %s)", provider, strings.Join(Providers, ", ")), nil)
	}
	return provider, nil
}

// Get returns the key for provider, or "" when neither the user nor the
// configuration supplies one.
func (s *Service) Get(ctx context.Context, userID, provider string) (string, error) {
	provider, err := NormalizeProvider(provider)
	if err != nil {
		return "", err
	}
	if s.store != nil && strings.TrimSpace(userID) != "" {
		key, err := s.store.APIKey(ctx, userID, provider)
		if err != nil {
			return "", fmt.Errorf("load %s key: %w", provider, err)
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}
	return strings.TrimSpace(s.fallback[provider]), nil
}

// Set stores a user key.
func (s *Service) Set(ctx context.Context, userID, provider, key string) error {
	provider, err := NormalizeProvider(provider)
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrValidation, "apikeys", "set", "api key required", nil)
	}
	return s.store.SetAPIKey(ctx, userID, provider, strings.TrimSpace(key))
}

// Delete removes a user key. The configured fallback, if any, applies again.
func (s *Service) Delete(ctx context.Context, userID, provider string) error {
	provider, err := NormalizeProvider(provider)
	if err != nil {
		return err
	}
	return s.store.DeleteAPIKey(ctx, userID, provider)
}

// Status reports where each provider's key comes from.
type Status struct {
	Provider string `json:"provider"`
	Source   string `json:"source"`
}

// Key sources reported by Statuses.
const (
	SourceUser   = "user"
	SourceConfig = "config"
	SourceNone   = "none"
)

// Statuses lists every provider with the source of its effective key.
func (s *Service) Statuses(ctx context.Context, userID string) ([]Status, error) {
	var userProviders []string
	if s.store != nil && strings.TrimSpace(userID) != "" {
		var err error
		userProviders, err = s.store.ConfiguredProviders(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	statuses := make([]Status, 0, len(Providers))
	for _, provider := range Providers {
		source := SourceNone
		switch {
		case slices.Contains(userProviders, provider):
			source = SourceUser
		case strings.TrimSpace(s.fallback[provider]) != "":
			source = SourceConfig
		}
		statuses = append(statuses, Status{Provider: provider, Source: source})
	}
	return statuses, nil
}
