// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/packkeeper/internal/logging"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// accountIDKey is the context key for storing authenticated account ID.
const accountIDKey = contextKey("account_id")

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	log     *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		log:     logging.New("auth"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates API key and returns account_id on success.
// Returns a specific error for each failure mode.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	// key_hash is unique, so at most one row matches
	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		AccountID  string       `db:"account_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, KeyHash(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps last_used_at writes rare for busy clients
	if shouldUpdateLastUsed(result.LastUsedAt, a.now()) {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now(), result.APIKeyID); err != nil {
			a.log.Warn("failed to update last_used_at", slog.String("api_key_id", result.APIKeyID), slog.Any("error", err))
		}
	}

	return result.AccountID, nil
}

// shouldUpdateLastUsed implements 1-minute throttle to reduce write amplification.
func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// IssuedKey is a newly created API key. Key is only available at creation.
type IssuedKey struct {
	ID       string
	Key      string
	SecretID string
}

// IssueAPIKey creates and stores a key for accountID, signed with the
// configured secret that sorts last (the newest UUIDv7 secret id).
func (a *Authenticator) IssueAPIKey(ctx context.Context, accountID, name string) (IssuedKey, error) {
	if len(a.secrets) == 0 {
		return IssuedKey{}, fmt.Errorf("no HMAC secret configured (set PK_HMAC_SECRET)")
	}
	ids := make([]string, 0, len(a.secrets))
	for id := range a.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	secretID := ids[len(ids)-1]

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return IssuedKey{}, err
	}
	issued := IssuedKey{ID: uuid.Must(uuid.NewV7()).String(), Key: key, SecretID: secretID}
	_, err = a.queries.Exec(ctx, "insert-api-key",
		issued.ID, accountID, secretID, KeyHash(a.secrets[secretID], key), name, a.now())
	if err != nil {
		return IssuedKey{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return issued, nil
}

// RevokeAPIKey marks the key as revoked. Revoking twice is not an error.
func (a *Authenticator) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	if _, err := a.queries.Exec(ctx, "revoke-api-key", a.now(), apiKeyID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Methods listed in skip (full method names) bypass authentication.
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(skip))
	for _, m := range skip {
		open[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		accountID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, ErrDatabase):
				return nil, status.Error(codes.Unavailable, err.Error())
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(WithAccountID(ctx, accountID), req)
	}
}

// WithAccountID returns ctx carrying an authenticated account ID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountIDFromContext extracts account ID from context.
// Returns empty string if not found.
func AccountIDFromContext(ctx context.Context) string {
	if accountID, ok := ctx.Value(accountIDKey).(string); ok {
		return accountID
	}
	return ""
}
