package imghost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrCredentialRejected marks an upload refused because the credential
// itself is invalid or exhausted, as opposed to a per-item failure.
var ErrCredentialRejected = errors.New("image host rejected credential")

// Classifier decides whether an upload failure condemns the credential
// rather than the item.
type Classifier interface {
	CredentialFailure(status int, message string) bool
}

// KeywordClassifier condemns the credential on a 400 response whose error
// message contains any of the configured keywords (case-insensitive).
// This mirrors the loose error reporting of the upstream host, which has
// no structured "bad key" code.
type KeywordClassifier struct {
	Keywords []string
}

func (c KeywordClassifier) CredentialFailure(status int, message string) bool {
	if status != http.StatusBadRequest {
		return false
	}
	m := strings.ToLower(message)
	for _, kw := range c.Keywords {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}

// DefaultClassifier matches the credential errors the host is known to
// produce.
func DefaultClassifier() Classifier {
	return KeywordClassifier{Keywords: []string{"key", "invalid", "expired", "missing"}}
}

// Client uploads normalized images to the hosting API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	classifier Classifier
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates an upload client. timeout bounds each attempt;
// maxRetries and retryDelay govern the transient-timeout retry loop.
func NewClient(endpoint string, timeout time.Duration, maxRetries int, retryDelay time.Duration, cls Classifier) *Client {
	if cls == nil {
		cls = DefaultClassifier()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		classifier: cls,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	StatusCode int `json:"status_code"`
}

// Upload sends one image as a form-encoded POST (key, base64 payload,
// truncated name) and returns the hosted URL. Network timeouts are
// retried up to the configured attempt count; every other failure is
// returned as-is. Credential rejections wrap ErrCredentialRejected.
func (c *Client) Upload(ctx context.Context, key, name string, jpegData []byte) (string, error) {
	form := url.Values{}
	form.Set("key", key)
	form.Set("image", base64.StdEncoding.EncodeToString(jpegData))
	form.Set("name", TruncateName(name))
	encoded := form.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		hosted, err := c.post(ctx, encoded)
		if err == nil {
			return hosted, nil
		}
		if !isTimeout(err) {
			return "", err
		}
		lastErr = err
		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("upload timed out after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, form string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("image host returned %d: %w", resp.StatusCode, err)
	}

	if parsed.Success && parsed.Data.URL != "" {
		return parsed.Data.URL, nil
	}

	msg := parsed.Error.Message
	if msg == "" {
		msg = "upload failed"
	}
	if c.classifier.CredentialFailure(resp.StatusCode, msg) {
		return "", fmt.Errorf("%w: %s", ErrCredentialRejected, msg)
	}
	return "", fmt.Errorf("image host error (%d): %s", resp.StatusCode, msg)
}

// TruncateName strips the extension and caps the upload name at 100
// characters, the limit the host applies server-side.
func TruncateName(name string) string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	if r := []rune(stem); len(r) > 100 {
		stem = string(r[:100])
	}
	return stem
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
