package db

import (
	"context"
	"fmt"

	"github.com/pact-foundation/pactengine/internal/types"
)

// APIKey is an issued API key. The key itself is never stored, only its
// HMAC in hex.
type APIKey struct {
	ID         types.APIKeyID `db:"api_key_id"`
	Name       string         `db:"name"`
	KeyHash    string         `db:"key_hash"`
	CreatedAt  Timestamp      `db:"created_at"`
	LastUsedAt Timestamp      `db:"last_used_at"`
	RevokedAt  Timestamp      `db:"revoked_at"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool { return !k.RevokedAt.IsZero() }

// CreateAPIKey records a key hash under a unique name.
func (s *ContractStore) CreateAPIKey(ctx context.Context, name, keyHash string) (types.APIKeyID, error) {
	if name == "" || keyHash == "" {
		return "", s.record("create_api_key", fmt.Errorf("API key name and hash are required"))
	}
	id := types.NewAPIKeyID()
	_, err := s.queries.Exec(ctx, "insert-api-key", string(id), name, keyHash, timeArg(s.db.DriverName(), s.now()))
	if err != nil {
		return "", s.record("create_api_key", fmt.Errorf("failed to create API key %s: %w", name, err))
	}
	return id, s.record("create_api_key", nil)
}

// APIKeyByHash returns the key with the given hash.
func (s *ContractStore) APIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	var k APIKey
	err := notFound(s.queries.Get(ctx, "get-api-key-by-hash", &k, keyHash), "API key", "hash")
	if err != nil {
		return nil, s.record("get_api_key", err)
	}
	return &k, s.record("get_api_key", nil)
}

// TouchAPIKey sets the last use time of a key to now.
func (s *ContractStore) TouchAPIKey(ctx context.Context, id types.APIKeyID) error {
	_, err := s.queries.Exec(ctx, "update-last-used", timeArg(s.db.DriverName(), s.now()), string(id))
	if err != nil {
		err = fmt.Errorf("failed to update API key %s: %w", id, err)
	}
	return s.record("touch_api_key", err)
}

// RevokeAPIKey revokes the active key called name.
func (s *ContractStore) RevokeAPIKey(ctx context.Context, name string) error {
	res, err := s.queries.Exec(ctx, "revoke-api-key", timeArg(s.db.DriverName(), s.now()), name)
	if err != nil {
		return s.record("revoke_api_key", fmt.Errorf("failed to revoke API key %s: %w", name, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.record("revoke_api_key", fmt.Errorf("active API key %s: %w", name, types.ErrNotFound))
	}
	return s.record("revoke_api_key", nil)
}

// ListAPIKeys returns every key, revoked ones included, by name.
func (s *ContractStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var out []APIKey
	if err := s.queries.Select(ctx, "list-api-keys", &out); err != nil {
		return nil, s.record("list_api_keys", fmt.Errorf("failed to list API keys: %w", err))
	}
	return out, s.record("list_api_keys", nil)
}
