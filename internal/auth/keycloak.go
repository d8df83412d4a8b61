package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/iliyamo/hcap-portal/internal/config"
)

// refreshAhead is how long before expiry the service-account token is
// replaced.  Concurrent requests may both refresh; that is harmless.
const refreshAhead = 30 * time.Second

// Client calls the Keycloak admin API with the portal's service account.
// It is built once at start-up and shared by handlers.
type Client struct {
	baseURL string
	realm   string
	http    *http.Client
}

// tokenSourceFunc adapts a fetch function to oauth2.TokenSource.
type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// NewClient returns a Client for cfg.  The token is fetched lazily with the
// client-credentials grant and cached until it is within refreshAhead of
// expiring.
func NewClient(cfg config.KeycloakConfig) *Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.AuthURL + "/realms/" + url.PathEscape(cfg.Realm) + "/protocol/openid-connect/token",
	}
	// cc.TokenSource would add its own cache with a shorter early expiry, so
	// fetch directly and let the reuse wrapper decide when to refresh.
	fetch := tokenSourceFunc(func() (*oauth2.Token, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cc.Token(ctx)
	})
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, fetch, refreshAhead)
	return &Client{
		baseURL: cfg.AuthURL,
		realm:   cfg.Realm,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
	}
}

type realmRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RealmRoles lists the realm roles mapped to a user.
func (c *Client) RealmRoles(ctx context.Context, userID string) ([]string, error) {
	var roles []realmRole
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	if err := c.do(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// AssignRealmRole maps the named realm role to a user.
func (c *Client) AssignRealmRole(ctx context.Context, userID, role string) error {
	var rep realmRole
	if err := c.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(role), nil, &rep); err != nil {
		return err
	}
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	return c.do(ctx, http.MethodPost, path, []realmRole{rep}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	endpoint := c.baseURL + "/admin/realms/" + url.PathEscape(c.realm) + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("keycloak %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("keycloak %s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
