package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptstudio/promptstudio/internal/session"
)

// IdentityFetcher resolves the user behind a bearer token.
type IdentityFetcher interface {
	Me(ctx context.Context, accessToken string) (*session.Identity, error)
}

// RejectedError is returned when the identity endpoint answers with a
// non-200 status, i.e. the platform does not accept the token.
type RejectedError struct {
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("identity endpoint returned status %d", e.Status)
}

// meResponse is the subset of the users/me payload we keep.
type meResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// IdentityClient calls GET /api/v2/users/me on the platform API.
type IdentityClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewIdentityClient creates a client for the platform API at baseURL
// (e.g. "https://api.mypurecloud.de").
func NewIdentityClient(httpClient *http.Client, baseURL string) *IdentityClient {
	return &IdentityClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Me returns the identity for accessToken. A non-200 answer yields a
// *RejectedError; transport failures are returned wrapped.
func (c *IdentityClient) Me(ctx context.Context, accessToken string) (*session.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("identity: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RejectedError{Status: resp.StatusCode}
	}

	var me meResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("identity: decoding response: %w", err)
	}

	return &session.Identity{
		ID:          me.ID,
		DisplayName: me.Name,
		Email:       me.Email,
		Username:    me.Username,
	}, nil
}
