// Package auth provides Google OAuth2 authentication for mailscheduler.
//
// It reads credentials.json and token.json in the google-auth library
// format, so tokens issued by other tooling work without re-authentication.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// DefaultScopes covers sending mail, reading/writing drafts, and the
// contact spreadsheet.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/spreadsheets",
}

// Services bundles the authenticated API clients built once at process
// start and passed down to the gateways.
type Services struct {
	Gmail  *gmail.Service
	Sheets *sheets.Service
}

// storedToken represents the token.json format written by the google-auth
// library.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// LoadServices returns authenticated Gmail and Sheets services.
// credentialsPath should point to the credentials.json file; token.json is
// expected next to it.
func LoadServices(ctx context.Context, credentialsPath string) (*Services, error) {
	client, err := getClient(ctx, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}

	gmailSvc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Services{Gmail: gmailSvc, Sheets: sheetsSvc}, nil
}

// getClient returns an authenticated HTTP client by loading the OAuth config
// from credentials.json and the token from token.json.
func getClient(ctx context.Context, credentialsPath string) (*http.Client, error) {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tokenPath := filepath.Join(filepath.Dir(credentialsPath), "token.json")
	token, err := loadStoredToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s: %w", tokenPath, err)
	}

	// Use a token source that auto-refreshes and save the refreshed token.
	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := saveStoredToken(tokenPath, newToken, config); saveErr != nil {
			// Non-fatal: log but don't fail.
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// loadOAuthConfig reads credentials.json and returns an OAuth2 config.
func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, DefaultScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return config, nil
}

// loadStoredToken reads a token.json file and converts it to an oauth2.Token.
func loadStoredToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// Parse expiry time; google-auth writes ISO 8601 with microseconds.
	var expiry time.Time
	if st.Expiry != "" {
		for _, layout := range []string{
			"2006-01-02T15:04:05.999999Z",
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			time.RFC3339Nano,
		} {
			if t, err := time.Parse(layout, st.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}

	return &oauth2.Token{
		AccessToken:  st.Token,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

// saveStoredToken writes a refreshed token back in the same format.
func saveStoredToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	st := storedToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       DefaultScopes,
		Expiry:       token.Expiry.UTC().Format("2006-01-02T15:04:05.999999Z"),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(tokenPath, data, 0o600)
}
