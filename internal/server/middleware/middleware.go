package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookie identifies a browser. Drafts and live forms are scoped to it.
const ClientCookie = "portal_client"

const clientCookieAge = 365 * 24 * time.Hour

// ctxKey is used for storing values in request context.
type ctxKey string

const clientKey ctxKey = "client"

// WithClient stores the client id in ctx.
func WithClient(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientKey, id)
}

// ClientFromContext returns the client id stored by Client, or "".
func ClientFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientKey).(string)
	return id
}

// Client makes sure every request carries a client id, issuing a new cookie
// when the browser has none or an invalid one.
func Client(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(ClientCookie); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(clientCookieAge / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), id)))
	})
}
