package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/gudang/internal/shared"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	budi, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	require.NoError(t, err)
	sari, err := bcrypt.GenerateFromPassword([]byte("kepala"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(map[string]string{"budi": string(budi), "sari": string(sari)}, []string{"sari"})
}

func TestAuthenticateResolvesActorAndRoles(t *testing.T) {
	svc := newTestService(t)

	actor, err := svc.Authenticate("budi.rahasia")
	require.NoError(t, err)
	require.Equal(t, "budi", actor.Name)
	require.True(t, actor.HasRole(shared.RoleOfficer))
	require.False(t, actor.HasRole(shared.RoleApprover))

	actor, err = svc.Authenticate("sari.kepala")
	require.NoError(t, err)
	require.True(t, actor.HasRole(shared.RoleApprover))
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)

	for _, token := range []string{"", "budi", "budi.salah", "ghost.rahasia", ".rahasia"} {
		_, err := svc.Authenticate(token)
		require.ErrorIs(t, err, shared.ErrUnauthorized, token)
	}
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	svc := newTestService(t)
	var seen string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		seen = actor.Name
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(svc, nil)(RequireRole(shared.RoleApprover)(final))

	req := httptest.NewRequest(http.MethodPost, "/api/opname/approve", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Authorization", "Bearer budi.rahasia")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req.Header.Set("Authorization", "Bearer sari.kepala")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "sari", seen)
}
