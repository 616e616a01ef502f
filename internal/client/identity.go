package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// IdentityClient verifies bearer tokens against the remote identity service.
type IdentityClient struct {
	base
}

// NewIdentityClient targets baseURL, e.g. http://auth:4000/api/auth.
func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{base: newBase(baseURL, timeout)}
}

// flexibleID accepts both string and numeric ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type verifyResponse struct {
	Valid bool `json:"valid"`
	User  struct {
		ID    flexibleID `json:"id"`
		Name  string     `json:"name"`
		Email string     `json:"email"`
		Role  string     `json:"role"`
	} `json:"user"`
}

// Verify calls GET /verify.  Any non valid answer or transport failure is
// reported as model.ErrUnauthorized.
func (c *IdentityClient) Verify(ctx context.Context, token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, fmt.Errorf("%w: missing token", model.ErrUnauthorized)
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	resp, err := c.do(ctx, http.MethodGet, "/verify", nil, h)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: identity service unreachable: %v", model.ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Identity{}, fmt.Errorf("%w: %s", model.ErrUnauthorized, errorMessage(resp))
	}
	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Identity{}, fmt.Errorf("%w: decode verify response: %v", model.ErrUnauthorized, err)
	}
	if !out.Valid || out.User.ID == "" {
		return model.Identity{}, fmt.Errorf("%w: token rejected", model.ErrUnauthorized)
	}
	return model.Identity{
		ID:    string(out.User.ID),
		Name:  out.User.Name,
		Email: out.User.Email,
		Role:  out.User.Role,
	}, nil
}
