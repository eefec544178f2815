package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/models"
)

// tokenCacheTTL bounds how long a verified token is served from the cache
const tokenCacheTTL = 5 * time.Minute

// UserFinder loads the identity behind a token
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Guard authenticates requests with bearer tokens and loads the caller
type Guard struct {
	authenticator auth.Authenticator
	tokens        *Tokens
	users         UserFinder
}

// NewGuard sets up go-guardian with a cached bearer strategy backed by tokens
func NewGuard(tokens *Tokens, users UserFinder) *Guard {
	g := &Guard{tokens: tokens, users: users}
	cache := store.NewFIFO(context.Background(), tokenCacheTTL)
	g.authenticator = auth.New()
	g.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(g.verify, cache))
	return g
}

// verify accepts session tokens only. Challenge tokens are rejected.
func (g *Guard) verify(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TwoFactor {
		return nil, fmt.Errorf("verification pending: %w", apperrors.ErrUnauthorized)
	}
	return auth.NewDefaultUser(claims.UserID, claims.UserID, nil, nil), nil
}

// Middleware rejects unauthenticated requests and stores the caller in the
// request context. EventSource clients cannot set headers, so the token is
// also read from the token query parameter.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		info, err := g.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL.Path, "error", err)
			config.ErrorStatus("authentication required", http.StatusUnauthorized, w, err)
			return
		}
		id, err := primitive.ObjectIDFromHex(info.ID())
		if err != nil {
			config.ErrorStatus("invalid token", http.StatusUnauthorized, w, err)
			return
		}

		ctx, cancel := WithQueryTimeout(r.Context())
		user, err := g.users.FindByID(ctx, id)
		cancel()
		if errors.Is(err, apperrors.ErrNotFound) {
			config.ErrorStatus("user not found", http.StatusUnauthorized, w, err)
			return
		}
		if err != nil {
			config.ErrorStatus("failed to load user", http.StatusInternalServerError, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRole admits callers holding at least one of roles
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				config.ErrorStatus("authentication required", http.StatusUnauthorized, w, apperrors.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			config.ErrorStatus("access denied", http.StatusForbidden, w, apperrors.ErrForbidden)
		})
	}
}
