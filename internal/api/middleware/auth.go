package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/redact"
	"github.com/strata-api/strata/internal/resource"
)

// SubjectKey is the context key carrying the authenticated token subject.
const SubjectKey contextKey = "subject"

// Authenticator validates bearer tokens signed with an HMAC secret.
type Authenticator struct {
	secret []byte
	log    *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(secret string, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), log: log}
}

// Authenticate rejects requests without a valid Bearer token. Failures are
// answered with the same error document shape the resource layer emits.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeAuthError(w, "Authorization header required")
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeAuthError(w, "Invalid authorization format")
			return
		}

		subject, err := a.validate(parts[1])
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				writeAuthError(w, "Token expired")
			default:
				a.log.Debug("token validation failed",
					slog.String("error", redact.Error(err)))
				writeAuthError(w, "Invalid token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) validate(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	return parsed.Claims.GetSubject()
}

// Subject retrieves the authenticated subject from the context, or an
// empty string for unauthenticated requests.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(SubjectKey).(string)
	return subject
}

func writeAuthError(w http.ResponseWriter, detail string) {
	doc, _ := apierr.Document(apierr.Unauthorized(detail))
	body, err := json.Marshal(doc)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", resource.ContentType)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(body)
}
