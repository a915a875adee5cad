package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ReadScope grants read-only access to the video platform's data API.
const ReadScope = "https://www.googleapis.com/auth/youtube.readonly"

// OAuthProvider implements Provider against Google's OAuth endpoint.
type OAuthProvider struct {
	cfg *oauth2.Config
}

// NewOAuthProvider builds a provider for the given OAuth client.
func NewOAuthProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{ReadScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// ExchangeCode swaps an authorization code for a credential pair.
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (Credentials, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return Credentials{}, fmt.Errorf("oauth exchange: %w", err)
	}
	return fromToken(tok), nil
}

// Refresh obtains a new access token for the stored refresh token.
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	src := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credentials{}, fmt.Errorf("oauth refresh: %w", err)
	}
	return fromToken(tok), nil
}

func fromToken(tok *oauth2.Token) Credentials {
	return Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
