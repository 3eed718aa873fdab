// =============================================================================
// Mineral Statistics ETL - Authenticator
// =============================================================================
//
// Acquires a bearer token for the document library with the resource owner
// password credentials grant of a confidential client:
//
//   POST {authority}/{tenant}/oauth2/v2.0/token
//     grant_type=password, username, password, scope={site}/.default,
//     client_id, client_secret
//
// A failed request carries the provider's error code and description, which
// the caller reports before skipping the upload.
//
// =============================================================================

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ErrMissingCredentials is returned, without a network call, when any input
// of the grant is empty.
var ErrMissingCredentials = errors.New("auth: missing credentials")

// Error is an identity-provider failure.
type Error struct {
	// Code is the provider's error code, e.g. "invalid_grant".
	Code string

	// Description is the provider's error description.
	Description string

	// Status is the HTTP status of the token response, zero for transport
	// failures.
	Status int

	err error
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("auth: token request failed: %v", e.err)
	}
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Config holds the grant inputs.
type Config struct {
	AuthorityHost string
	TenantID      string
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string

	// Resource is the site root the token is requested for. The scope sent
	// is Resource + "/.default".
	Resource string

	// HTTPClient is used for the token request. Nil uses a default client.
	HTTPClient *http.Client
}

// Authenticator requests access tokens.
type Authenticator struct {
	config Config
	oauth  *oauth2.Config
}

// New creates an Authenticator.
func New(cfg Config) *Authenticator {
	authority := strings.TrimRight(cfg.AuthorityHost, "/")
	return &Authenticator{
		config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, cfg.TenantID),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{strings.TrimRight(cfg.Resource, "/") + "/.default"},
		},
	}
}

// TokenURL returns the token endpoint the Authenticator posts to.
func (a *Authenticator) TokenURL() string {
	return a.oauth.Endpoint.TokenURL
}

// Token requests a bearer token.
//
// RETURNS:
//   - The access token.
//   - ErrMissingCredentials if an input is empty, or an *Error describing
//     the provider's answer.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if missing := a.missing(); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if a.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.config.HTTPClient)
	}

	tok, err := a.oauth.PasswordCredentialsToken(ctx, a.config.Username, a.config.Password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			e := &Error{Code: re.ErrorCode, Description: re.ErrorDescription, err: err}
			if re.Response != nil {
				e.Status = re.Response.StatusCode
			}
			if e.Code == "" {
				e.Description = strings.TrimSpace(string(re.Body))
			}
			return "", e
		}
		return "", &Error{err: err}
	}
	if tok.AccessToken == "" {
		return "", &Error{Code: "empty_token", Description: "the provider returned no access token"}
	}
	return tok.AccessToken, nil
}

func (a *Authenticator) missing() []string {
	inputs := []struct {
		name  string
		value string
	}{
		{"tenant id", a.config.TenantID},
		{"client id", a.config.ClientID},
		{"client secret", a.config.ClientSecret},
		{"username", a.config.Username},
		{"password", a.config.Password},
		{"resource", a.config.Resource},
	}
	var missing []string
	for _, in := range inputs {
		if strings.TrimSpace(in.value) == "" {
			missing = append(missing, in.name)
		}
	}
	return missing
}
