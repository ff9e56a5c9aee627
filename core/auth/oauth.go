package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"metawave/config"
)

// Identity is what a provider tells us about the person signing in.
type Identity struct {
	Subject string
	Email   string
	Name    string
	// Login is the provider's username, when it has one.
	Login string
}

// Provider is an external sign-in provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// OAuth2Provider runs the authorization-code flow and reads the user from
// the provider's userinfo endpoint.
type OAuth2Provider struct {
	name        string
	conf        *oauth2.Config
	userInfoURL string
}

func NewOAuth2Provider(name string, p config.OAuthProvider) *OAuth2Provider {
	return &OAuth2Provider{
		name: name,
		conf: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Scopes:       p.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  p.AuthURL,
				TokenURL: p.TokenURL,
			},
		},
		userInfoURL: p.UserInfoURL,
	}
}

// NewOAuth2Providers builds a provider for every configured entry.
func NewOAuth2Providers(cfg map[string]config.OAuthProvider) []Provider {
	providers := make([]Provider, 0, len(cfg))
	for name, p := range cfg {
		providers = append(providers, NewOAuth2Provider(name, p))
	}
	return providers
}

func (p *OAuth2Provider) Name() string { return p.name }

func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: exchange code: %w", p.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch userinfo: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: userinfo returned %s", p.name, resp.Status)
	}

	var info map[string]interface{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&info); err != nil {
		return nil, fmt.Errorf("%s: decode userinfo: %w", p.name, err)
	}
	id := &Identity{
		Subject: firstString(info, "sub", "id"),
		Email:   firstString(info, "email"),
		Name:    firstString(info, "name", "login"),
		Login:   firstString(info, "login", "preferred_username", "username"),
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("%s: userinfo has no subject", p.name)
	}
	return id, nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
