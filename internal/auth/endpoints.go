package auth

import "strings"

// Endpoints are the platform URLs used for login and identity lookups.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string
}

// PlatformEndpoints derives the endpoints for a platform domain such as
// "mypurecloud.de": login.<domain> for OAuth and api.<domain> for the API.
func PlatformEndpoints(domain string) Endpoints {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), "/")
	return Endpoints{
		AuthorizeURL: "https://login." + domain + "/oauth/authorize",
		TokenURL:     "https://login." + domain + "/oauth/token",
		APIBaseURL:   "https://api." + domain,
	}
}
