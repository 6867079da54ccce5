// Package auth provides HMAC-based API key authentication for the gRPC
// service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pact-foundation/pactengine/internal/core/db"
	"github.com/pact-foundation/pactengine/internal/types"
)

// MetadataKey is the gRPC metadata entry carrying the API key.
const MetadataKey = "x-api-key"

// touchInterval throttles last-use updates of a busy key.
const touchInterval = time.Minute

const healthPrefix = "/grpc.health.v1.Health/"

type contextKey string

const keyNameKey = contextKey("api_key_name")

// KeyStore is the part of the contract store that holds API keys.
type KeyStore interface {
	APIKeyByHash(ctx context.Context, keyHash string) (*db.APIKey, error)
	TouchAPIKey(ctx context.Context, id types.APIKeyID) error
}

// Authenticator validates API keys against the secrets they were issued
// under. Several secrets may be active while one is rotated out.
type Authenticator struct {
	secrets map[string][]byte
	keys    KeyStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator over the key store.
func NewAuthenticator(keys KeyStore, logger *slog.Logger, secrets ...[]byte) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string][]byte, len(secrets))
	for _, s := range secrets {
		m[SecretID(s)] = s
	}
	return &Authenticator{secrets: m, keys: keys, logger: logger, now: time.Now}
}

// Authenticate validates an API key and returns the name it was issued to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownSecret
	}

	key, err := a.keys.APIKeyByHash(ctx, KeyHash(secret, apiKey))
	if errors.Is(err, types.ErrNotFound) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyStore, err)
	}
	if key.Revoked() {
		return "", ErrKeyRevoked
	}

	if a.shouldTouch(key.LastUsedAt.Time) {
		if err := a.keys.TouchAPIKey(ctx, key.ID); err != nil {
			a.logger.Warn("failed to update API key last use", "key", key.Name, "error", err)
		}
	}
	return key.Name, nil
}

func (a *Authenticator) shouldTouch(lastUsed time.Time) bool {
	return lastUsed.IsZero() || a.now().Sub(lastUsed) > touchInterval
}

// UnaryInterceptor authenticates every call except health checks.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		name, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrKeyStore):
			return nil, status.Error(codes.Unavailable, err.Error())
		case err != nil:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		a.logger.Debug("authenticated call", "method", info.FullMethod, "key", name)
		return handler(context.WithValue(ctx, keyNameKey, name), req)
	}
}

// KeyNameFromContext returns the name of the authenticated API key, or ""
// for unauthenticated calls.
func KeyNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(keyNameKey).(string)
	return name
}
