// =============================================================================
// Mineral Statistics ETL - Configuration Module
// =============================================================================
//
// This module loads everything the job needs before it touches the network.
// It handles two kinds of configuration:
//
// CONFIGURATION SOURCES:
//   1. Environment settings (.env file + process environment): credentials
//      and document-library locations. Loaded with viper.
//   2. Lookup tables (tables.yaml): releases, allow-lists, name maps and
//      year windows. Loaded with yaml.v3, see tables.go.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// =============================================================================
// ENVIRONMENT KEYS
// =============================================================================
// The names are kept exactly as the existing .env files spell them, including
// the lower-case Microsoft account keys.

const (
	KeyTenantID       = "TENANT_ID"
	KeyClientID       = "CLIENT_ID"
	KeyClientSecret   = "CLIENT_SECRET"
	KeyUsername       = "username_microsoft"
	KeyPassword       = "password_microsoft"
	KeySiteURL        = "SHAREPOINT_URL_RAIZ"
	KeySitePath       = "SHAREPOINT_SITE"
	KeyFolder         = "SHAREPOINT_PASTA"
	KeyLibrary        = "SHAREPOINT_DOC"
	KeyAuthorityHost  = "AUTHORITY_HOST"
	KeyScienceBaseURL = "SCIENCEBASE_URL"
)

const (
	// DefaultAuthorityHost is the Microsoft identity platform login host.
	DefaultAuthorityHost = "https://login.microsoftonline.com"

	// DefaultScienceBaseURL is the public data repository host.
	DefaultScienceBaseURL = "https://www.sciencebase.gov"
)

// =============================================================================
// SETTINGS STRUCTURE
// =============================================================================

// Settings holds the environment-provided configuration.
type Settings struct {
	// =========================================================================
	// IDENTITY PROVIDER
	// =========================================================================

	// TenantID is the directory (tenant) the token is requested from.
	TenantID string

	// ClientID and ClientSecret identify the confidential client application.
	ClientID     string
	ClientSecret string

	// Username and Password are the resource owner's credentials.
	Username string
	Password string

	// AuthorityHost is the login host. Default: https://login.microsoftonline.com
	AuthorityHost string

	// =========================================================================
	// DOCUMENT LIBRARY
	// =========================================================================

	// SiteURL is the site root, e.g. https://contoso.sharepoint.com
	SiteURL string

	// SitePath is the site path below the root, e.g. /sites/Minerals
	SitePath string

	// Library is the document library path, e.g. Shared Documents
	Library string

	// Folder is the target folder inside the library.
	Folder string

	// =========================================================================
	// DATA REPOSITORY
	// =========================================================================

	// ScienceBaseURL is the data repository host.
	ScienceBaseURL string
}

// LoadSettings reads the optional dotenv file at envFile and overlays the
// process environment on top of it. A missing file is not an error.
//
// PARAMETERS:
//   - envFile: Path to a dotenv file. Empty skips the file.
//
// RETURNS:
//   - The loaded settings, with defaults applied.
//   - An error if the file exists but cannot be parsed.
func LoadSettings(envFile string) (*Settings, error) {
	v := viper.New()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat env file %s: %w", envFile, err)
		}
	}

	keys := []string{
		KeyTenantID, KeyClientID, KeyClientSecret, KeyUsername, KeyPassword,
		KeySiteURL, KeySitePath, KeyFolder, KeyLibrary,
		KeyAuthorityHost, KeyScienceBaseURL,
	}
	for _, key := range keys {
		// Bind both spellings so username_microsoft and USERNAME_MICROSOFT work.
		if err := v.BindEnv(key, key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault(KeyAuthorityHost, DefaultAuthorityHost)
	v.SetDefault(KeyScienceBaseURL, DefaultScienceBaseURL)

	s := &Settings{
		TenantID:       v.GetString(KeyTenantID),
		ClientID:       v.GetString(KeyClientID),
		ClientSecret:   v.GetString(KeyClientSecret),
		Username:       v.GetString(KeyUsername),
		Password:       v.GetString(KeyPassword),
		AuthorityHost:  v.GetString(KeyAuthorityHost),
		SiteURL:        v.GetString(KeySiteURL),
		SitePath:       v.GetString(KeySitePath),
		Library:        v.GetString(KeyLibrary),
		Folder:         v.GetString(KeyFolder),
		ScienceBaseURL: v.GetString(KeyScienceBaseURL),
	}
	applySettingsDefaults(s)

	return s, nil
}

// applySettingsDefaults fills values that viper left empty, e.g. when the
// variable was set to an empty string.
func applySettingsDefaults(s *Settings) {
	if strings.TrimSpace(s.AuthorityHost) == "" {
		s.AuthorityHost = DefaultAuthorityHost
	}
	if strings.TrimSpace(s.ScienceBaseURL) == "" {
		s.ScienceBaseURL = DefaultScienceBaseURL
	}
	s.AuthorityHost = strings.TrimRight(s.AuthorityHost, "/")
	s.ScienceBaseURL = strings.TrimRight(s.ScienceBaseURL, "/")
}

// Missing returns the names of the required keys that are empty. Only the
// upload step needs them, so callers decide whether this is fatal.
func (s *Settings) Missing() []string {
	required := []struct {
		key   string
		value string
	}{
		{KeyTenantID, s.TenantID},
		{KeyClientID, s.ClientID},
		{KeyClientSecret, s.ClientSecret},
		{KeyUsername, s.Username},
		{KeyPassword, s.Password},
		{KeySiteURL, s.SiteURL},
		{KeySitePath, s.SitePath},
		{KeyLibrary, s.Library},
		{KeyFolder, s.Folder},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}
