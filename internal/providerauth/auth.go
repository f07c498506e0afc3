// Package providerauth resolves the GitHub credentials the Delivery Agent
// and Source Fetcher need: either a GitHub App installation token (server
// mode, webhook-driven) or a plain personal access token (CLI mode). It is
// grounded on the reference implementation's internal/github auth.go/
// client.go, trimmed to the token-resolution half — PR operations
// themselves live in internal/delivery.
package providerauth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/livingdocs/pipeline/internal/config"
)

// InstallationToken exchanges the app's private key for a short-lived
// installation access token scoped to installationID, the credential the
// Delivery Agent uses for that installation's repositories.
func InstallationToken(ctx context.Context, cfg *config.Config, installationID int64) (string, error) {
	privateKey, err := os.ReadFile(cfg.Provider.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("read private key from %s: %w", cfg.Provider.PrivateKeyPath, err)
	}

	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, cfg.Provider.AppID, privateKey)
	if err != nil {
		return "", fmt.Errorf("create github app transport: %w", err)
	}
	appClient := github.NewClient(&http.Client{Transport: appTransport})

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token for installation %d: %w", installationID, err)
	}
	if token.GetToken() == "" {
		return "", fmt.Errorf("received an empty installation token for installation %d", installationID)
	}
	return token.GetToken(), nil
}

// ClientForToken returns a *github.Client authenticated with token,
// whether token is a PAT (CLI mode) or an already-resolved installation
// token (server mode) — the Delivery Agent's PRClient factory wraps
// whatever token the caller already resolved onto the Trigger, never
// re-deriving credentials itself.
func ClientForToken(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}
