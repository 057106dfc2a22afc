package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"resty.dev/v3"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider signs users in with Google OAuth and reads their profile.
type GoogleProvider struct {
	oauth       *oauth2.Config
	client      *resty.Client
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		client:      resty.New(),
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL is where the browser is sent to consent.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Identify exchanges the callback code and fetches the user's profile.
func (g *GoogleProvider) Identify(ctx context.Context, code string) (*Identity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}
	return g.fetchUserInfo(ctx, token.AccessToken)
}

func (g *GoogleProvider) fetchUserInfo(ctx context.Context, accessToken string) (*Identity, error) {
	var info googleUserInfo
	res, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&info).
		Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("request user info: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("user info returned unexpected status: %d", res.StatusCode())
	}
	if info.Email == "" {
		return nil, errors.New("user info has no email")
	}

	id := info.ID
	if id == "" {
		id = info.Sub
	}
	name := info.Name
	if name == "" {
		name = "Usuario"
	}
	return &Identity{ID: id, Email: info.Email, Name: name, Picture: info.Picture}, nil
}

func (g *GoogleProvider) Close() error {
	return g.client.Close()
}
