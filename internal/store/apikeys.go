package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetAPIKey stores the key a user configured for a provider, replacing any
// previous value.
func (s *Store) SetAPIKey(ctx context.Context, userID, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return errors.New("provider is required")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO api_keys (user_id, provider, api_key, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(user_id, provider) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		userID,
		provider,
		key,
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	return nil
}

// APIKey returns the stored key for a user and provider. A missing key yields
// an empty string and no error.
func (s *Store) APIKey(ctx context.Context, userID, provider string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT api_key FROM api_keys WHERE user_id = ? AND provider = ?`,
		userID, strings.ToLower(strings.TrimSpace(provider)),
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// ConfiguredProviders lists the providers a user has stored keys for.
func (s *Store) ConfiguredProviders(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider FROM api_keys WHERE user_id = ? AND api_key <> '' ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	var providers []string
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}

// DeleteAPIKey removes a stored key.
func (s *Store) DeleteAPIKey(ctx context.Context, userID, provider string) error {
	if err := s.execWithoutResultRetry(ctx,
		`DELETE FROM api_keys WHERE user_id = ? AND provider = ?`,
		userID, strings.ToLower(strings.TrimSpace(provider)),
	); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}
