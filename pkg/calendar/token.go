package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// Scope grants event read/write on the user's calendars.
const Scope = "https://www.googleapis.com/auth/calendar"

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// credentialsFile matches the OAuth client JSON downloaded from the
// Google Cloud console, for either desktop or web app clients.
type credentialsFile struct {
	Installed *clientSecret `json:"installed"`
	Web       *clientSecret `json:"web"`
}

type clientSecret struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadOAuthConfig reads an OAuth client secrets file and builds the
// oauth2 config used for both the interactive setup flow and token
// refresh at runtime.
func LoadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	secret := creds.Installed
	if secret == nil {
		secret = creds.Web
	}
	if secret == nil {
		return nil, fmt.Errorf("credentials file has neither installed nor web client")
	}

	authURL := secret.AuthURI
	if authURL == "" {
		authURL = googleAuthURL
	}
	tokenURL := secret.TokenURI
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}

	config := &oauth2.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
	if len(secret.RedirectURIs) > 0 {
		config.RedirectURL = secret.RedirectURIs[0]
	}

	return config, nil
}

func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// persistingTokenSource rewrites the token file whenever the
// underlying source refreshes, so the next process start picks up the
// newest refresh token.
type persistingTokenSource struct {
	path string
	src  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(path string, src oauth2.TokenSource, current *oauth2.Token) *persistingTokenSource {
	ts := &persistingTokenSource{path: path, src: src}
	if current != nil {
		ts.last = current.AccessToken
	}
	return ts
}

func (ts *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.src.Token()
	if err != nil {
		return nil, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if token.AccessToken != ts.last {
		if err := SaveToken(ts.path, token); err != nil {
			return nil, err
		}
		ts.last = token.AccessToken
	}
	return token, nil
}
