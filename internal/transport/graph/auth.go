package graph

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultScope requests every application permission granted to the client.
const defaultScope = "https://graph.microsoft.com/.default"

func tokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

// authorizedClient returns an HTTP client that attaches a client-credentials
// bearer token to every request. Tokens are cached and refreshed before they
// expire. base carries the timeout and is also used for token requests.
func authorizedClient(cfg Config, tokenEndpoint string, base *http.Client) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenEndpoint,
		Scopes:       []string{defaultScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	client := cc.Client(ctx)
	client.Timeout = base.Timeout
	return client
}
