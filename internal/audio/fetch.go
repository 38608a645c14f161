package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher loads clip bytes from http(s) URLs, file URLs, local paths, or
// paths relative to the interview backend such as /static/audio/x.wav.
type Fetcher struct {
	BaseURL  string
	MaxBytes int64
	Client   *http.Client
}

// NewFetcher creates a fetcher resolving relative paths against baseURL.
func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		BaseURL:  baseURL,
		MaxBytes: 64 << 20,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Resolve turns raw into an absolute http(s) URL or a local file path.
func (f *Fetcher) Resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid audio url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https":
		return u.String(), nil
	case "file":
		return u.Path, nil
	case "":
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedFormat, u.Scheme)
	}

	if _, err := os.Stat(raw); err == nil {
		return filepath.Clean(raw), nil
	}

	if strings.HasPrefix(raw, "/") && f.BaseURL != "" {
		base, err := url.Parse(f.BaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid backend url %q: %w", f.BaseURL, err)
		}
		return base.ResolveReference(u).String(), nil
	}
	return filepath.Clean(raw), nil
}

// Fetch resolves raw and returns the clip bytes.
func (f *Fetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	target, err := f.Resolve(raw)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		file, err := os.Open(target)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio file: %w", err)
		}
		defer file.Close()
		return f.readLimited(file)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build audio request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch audio: %s returned %d", target, resp.StatusCode)
	}
	return f.readLimited(resp.Body)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, ErrClipTooLarge
	}
	return data, nil
}
