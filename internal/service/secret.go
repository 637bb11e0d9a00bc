package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kolobok/dbadmin/internal/models"
)

// SecretVerifier fetches the reference secret from a remote URL and compares
// it with operator input. Any non-2xx status or network failure is a
// connectivity error, never a wrong-password verdict.
type SecretVerifier struct {
	url    string
	client *http.Client
}

func NewSecretVerifier(url string, timeout time.Duration) *SecretVerifier {
	return &SecretVerifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Verify returns whether candidate matches the fetched secret byte-exactly.
// The response body is trimmed of surrounding whitespace before comparison.
func (v *SecretVerifier) Verify(ctx context.Context, candidate string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: bad secret URL: %v", models.ErrConnectivity, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: secret fetch failed: %v", models.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: secret fetch returned status %d", models.ErrConnectivity, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: secret read failed: %v", models.ErrConnectivity, err)
	}

	reference := strings.TrimSpace(string(body))
	return candidate == reference, nil
}
