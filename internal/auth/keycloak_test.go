package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/hcap-portal/internal/config"
)

// fakeKeycloak serves the token endpoint and the two admin routes the
// client uses.  expiresIn controls the lifetime of issued tokens.
func fakeKeycloak(t *testing.T, expiresIn int) (*httptest.Server, *int32, *[]string) {
	t.Helper()
	var tokenCalls int32
	var assigned []string
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/hcap/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"token_type":   "bearer",
			"expires_in":   expiresIn,
		})
	})
	mux.HandleFunc("/admin/realms/hcap/roles/employer", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(realmRole{ID: "r-1", Name: "employer"})
	})
	mux.HandleFunc("/admin/realms/hcap/users/u-1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var roles []realmRole
			if err := json.NewDecoder(r.Body).Decode(&roles); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for _, role := range roles {
				assigned = append(assigned, role.Name)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode([]realmRole{{ID: "r-1", Name: "employer"}, {ID: "r-2", Name: "region_fraser"}})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls, &assigned
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.KeycloakConfig{
		AuthURL:      baseURL,
		Realm:        "hcap",
		ClientID:     "hcap-api",
		ClientSecret: "secret",
	})
}

func TestClientReusesLongLivedToken(t *testing.T) {
	srv, tokenCalls, assigned := fakeKeycloak(t, 300)
	c := newTestClient(srv.URL)

	ctx := context.Background()
	if err := c.AssignRealmRole(ctx, "u-1", "employer"); err != nil {
		t.Fatalf("AssignRealmRole: %v", err)
	}
	roles, err := c.RealmRoles(ctx, "u-1")
	if err != nil {
		t.Fatalf("RealmRoles: %v", err)
	}
	if len(roles) != 2 || roles[1] != "region_fraser" {
		t.Errorf("roles = %v", roles)
	}
	if got := atomic.LoadInt32(tokenCalls); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
	if len(*assigned) != 1 || (*assigned)[0] != "employer" {
		t.Errorf("assigned = %v", *assigned)
	}
}

func TestClientRefreshesTokenCloseToExpiry(t *testing.T) {
	// 20s is inside the 30s refresh-ahead window, so every call re-authenticates.
	srv, tokenCalls, _ := fakeKeycloak(t, 20)
	c := newTestClient(srv.URL)

	if err := c.AssignRealmRole(context.Background(), "u-1", "employer"); err != nil {
		t.Fatalf("AssignRealmRole: %v", err)
	}
	if got := atomic.LoadInt32(tokenCalls); got != 2 {
		t.Errorf("token requests = %d, want 2 (one per admin call)", got)
	}
}

func TestClientSurfacesAdminErrors(t *testing.T) {
	srv, _, _ := fakeKeycloak(t, 300)
	c := newTestClient(srv.URL)

	err := c.AssignRealmRole(context.Background(), "u-1", "no_such_role")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
