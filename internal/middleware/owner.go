package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/logger"
)

// ownerHeader carries the owner identity asserted by the upstream
// identity provider.
const ownerHeader = "X-Owner-ID"

type ownerKeyType struct{}

var ownerKey ownerKeyType

// OwnerAuth resolves the authenticated owner from the identity provider's
// X-Owner-ID header. The identity provider terminates authentication
// upstream; this subsystem trusts the asserted identity unconditionally.
func OwnerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ownerHeader)
		if raw == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Authentication required"}`))
			return
		}

		ownerID, err := uuid.Parse(raw)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Invalid owner identity"}`))
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		ctx = logger.WithOwnerID(ctx, ownerID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFromContext returns the authenticated owner ID, if present.
func OwnerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerKey).(uuid.UUID)
	return id, ok
}
