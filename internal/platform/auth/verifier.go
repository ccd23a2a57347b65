package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	currentUserPath = "/auth/users/me"
	profilePath     = "/users/profile"

	maxIdentityBody = 64 * 1024
)

// StatusError carries a non-2xx verdict returned by the identity service so
// callers can forward the upstream status unchanged.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth: identity service returned status %d", e.StatusCode)
}

// UnreachableError indicates the identity service could not be contacted at all.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("auth: identity service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Verifier resolves bearer tokens against the identity service. Each
// protected request triggers one lookup of the current user, and billing
// profiles load lazily only when a caller asks for them.
type Verifier struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// VerifierDeps wires the identity-service client.
type VerifierDeps struct {
	// BaseURL is the identity service root, e.g. "https://identity.internal".
	BaseURL string
	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
	// Timeout bounds each identity-service call. Defaults to 15 seconds.
	Timeout time.Duration
}

// NewVerifier validates dependencies and constructs a Verifier.
func NewVerifier(deps VerifierDeps) (*Verifier, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("auth: identity service base url is required")
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Verifier{baseURL: baseURL, client: client, timeout: timeout}, nil
}

// Verify resolves the bearer token to an authenticated identity. Non-2xx
// responses surface as *StatusError with the upstream status preserved and
// transport failures surface as *UnreachableError.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	var payload struct {
		Username string `json:"username"`
		UserRole string `json:"userRole"`
	}
	if err := v.getJSON(ctx, currentUserPath, token, &payload); err != nil {
		return nil, err
	}

	identity := &Identity{
		Username: strings.TrimSpace(payload.Username),
		Role:     strings.ToLower(strings.TrimSpace(payload.UserRole)),
		Token:    token,
	}
	identity.profileLoader = v.loadProfile

	return identity, nil
}

func (v *Verifier) loadProfile(ctx context.Context, token string) (Profile, error) {
	var payload struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phoneNumber"`
		Phone       string `json:"phone"`
	}
	if err := v.getJSON(ctx, profilePath, token, &payload); err != nil {
		return Profile{}, err
	}

	phone := strings.TrimSpace(payload.PhoneNumber)
	if phone == "" {
		phone = strings.TrimSpace(payload.Phone)
	}

	return Profile{
		FirstName:   strings.TrimSpace(payload.FirstName),
		LastName:    strings.TrimSpace(payload.LastName),
		Email:       strings.TrimSpace(payload.Email),
		PhoneNumber: phone,
	}, nil
}

func (v *Verifier) getJSON(ctx context.Context, path, token string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("auth: build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdentityBody))
	if err != nil {
		return &UnreachableError{Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("auth: decode identity response: %w", err)
	}

	return nil
}
