// Package genesys publishes prompt audio to the Architect prompt library of a
// cloud contact-center organization.
package genesys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// maxResponseBytes bounds JSON responses read from the platform.
const maxResponseBytes = 1 << 20

// Config identifies the organization and the machine credentials used for
// publishing.
type Config struct {
	ClientID     string
	ClientSecret string
	// Region is the platform domain, e.g. "mypurecloud.de".
	Region string

	// TokenURL and APIBaseURL override the regional endpoints when set.
	TokenURL   string
	APIBaseURL string
}

// Client publishes prompts with a client-credentials token.
type Client struct {
	httpClient *http.Client
	creds      *clientcredentials.Config
	baseURL    string
	configured bool
}

// StatusError is a non-success answer from the platform.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: platform returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: platform returned status %d: %s", e.Op, e.Status, e.Body)
}

// NewClient creates a publish client. httpClient is used for token requests
// and API calls and should carry a bounded timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://login." + cfg.Region + "/oauth/token"
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://api." + cfg.Region
	}
	return &Client{
		httpClient: httpClient,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		configured: cfg.ClientID != "" && cfg.ClientSecret != "" && (cfg.Region != "" || cfg.APIBaseURL != ""),
	}
}

// Configured returns true if machine credentials and a region are set.
func (c *Client) Configured() bool {
	return c.configured
}

type prompt struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type promptList struct {
	Entities []prompt `json:"entities"`
}

type promptResource struct {
	ID        string `json:"id,omitempty"`
	Language  string `json:"language"`
	UploadURI string `json:"uploadUri,omitempty"`
}

// PublishPrompt uploads audio as the language resource of the prompt called
// name, creating the prompt and the resource when they do not exist yet.
// It makes a single attempt.
func (c *Client) PublishPrompt(ctx context.Context, audio []byte, name, description, language string) error {
	if !c.Configured() {
		return errors.New("prompt library credentials are not configured")
	}

	api := c.creds.Client(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))

	p, err := c.findOrCreatePrompt(ctx, api, name, description)
	if err != nil {
		return err
	}

	res, err := c.ensureResource(ctx, api, p.ID, language)
	if err != nil {
		return err
	}
	if res.UploadURI == "" {
		return fmt.Errorf("prompt %s resource %s has no upload uri", p.ID, language)
	}

	if err := c.upload(ctx, api, res.UploadURI, name, audio); err != nil {
		return err
	}

	slog.Info("prompt audio uploaded", "prompt_id", p.ID, "name", name, "language", language)
	return nil
}

func (c *Client) findOrCreatePrompt(ctx context.Context, api *http.Client, name, description string) (*prompt, error) {
	var list promptList
	q := url.Values{"name": {name}}
	if err := c.doJSON(ctx, api, "find prompt", http.MethodGet, "/api/v2/architect/prompts?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	for i := range list.Entities {
		if list.Entities[i].Name == name {
			return &list.Entities[i], nil
		}
	}

	var created prompt
	if err := c.doJSON(ctx, api, "create prompt", http.MethodPost, "/api/v2/architect/prompts",
		prompt{Name: name, Description: description}, &created); err != nil {
		return nil, err
	}
	slog.Debug("prompt created", "prompt_id", created.ID, "name", name)
	return &created, nil
}

func (c *Client) ensureResource(ctx context.Context, api *http.Client, promptID, language string) (*promptResource, error) {
	base := "/api/v2/architect/prompts/" + url.PathEscape(promptID) + "/resources"

	var res promptResource
	err := c.doJSON(ctx, api, "create prompt resource", http.MethodPost, base, promptResource{Language: language}, &res)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		err = c.doJSON(ctx, api, "get prompt resource", http.MethodGet, base+"/"+url.PathEscape(language), nil, &res)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) upload(ctx context.Context, api *http.Client, uploadURI, name string, audio []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", path.Base(name)+".wav")
	if err != nil {
		return fmt.Errorf("upload prompt audio: creating form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("upload prompt audio: writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload prompt audio: closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURI, &body)
	if err != nil {
		return fmt.Errorf("upload prompt audio: creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := api.Do(req)
	if err != nil {
		return fmt.Errorf("upload prompt audio: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: "upload prompt audio", Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx answer into out.
func (c *Client) doJSON(ctx context.Context, api *http.Client, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshalling request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := api.Do(req)
	if err != nil {
		return fmt.Errorf("%s: sending request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}
