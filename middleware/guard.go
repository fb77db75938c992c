package middleware

import (
	"context"
	"net/http"
	"strings"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validation result injected by a guard.
func AuthResultFromContext(ctx context.Context) (*kogu.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*kogu.AuthResult)
	return res, ok
}

// Guard validates the bearer token with the engine's configured mode and
// stores the result in the request context.
func Guard(engine *kogu.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*kogu.AuthResult, error) {
		return engine.ValidateAccess(ctx, token)
	})
}

// RequireJWTOnly overrides the validation mode to [kogu.ModeJWTOnly] for
// the wrapped handler, skipping Redis entirely.
func RequireJWTOnly(engine *kogu.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*kogu.AuthResult, error) {
		return engine.Validate(ctx, token, kogu.ModeJWTOnly)
	})
}

// RequireStrict overrides the validation mode to [kogu.ModeStrict] for the
// wrapped handler.
func RequireStrict(engine *kogu.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(ctx context.Context, token string) (*kogu.AuthResult, error) {
		return engine.Validate(ctx, token, kogu.ModeStrict)
	})
}

// RequireRole rejects authenticated requests whose role is not in the
// allowed set. Must run inside a guard; an absent auth result is a 401.
func RequireRole(roles ...kogu.Role) func(http.Handler) http.Handler {
	allowed := make(map[kogu.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[res.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func guard(
	engine *kogu.Engine,
	validate func(context.Context, string) (*kogu.AuthResult, error),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
