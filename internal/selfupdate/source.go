package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Release describes the newest build a Source knows about.
type Release struct {
	Version     string
	CanDownload bool
	// ServerVersion is the build the server actually serves, which may lag
	// Version while the server catches up.
	ServerVersion string
	DownloadURL   string
	// SignatureURL locates the detached signature of the bundle.
	SignatureURL string
}

// Source reports the latest release.
type Source interface {
	Name() string
	Latest(ctx context.Context) (*Release, error)
}

// ErrMalformedResponse is returned when a version endpoint answers with
// something other than the expected JSON document.
var ErrMalformedResponse = errors.New("malformed version response")

const maxCheckBody = 64 * 1024

// HTTPSource asks the update server's check_update endpoint.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource returns a source for the update server at baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSource) Name() string { return "http" }

// Field names the server uses, with English aliases.
var (
	fieldLatest        = []string{"github版本", "latest"}
	fieldCanDownload   = []string{"可以下载", "can_download"}
	fieldServerVersion = []string{"服务器版本", "server_version"}
)

// Latest implements Source.
func (s *HTTPSource) Latest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/check_update", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build check request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("check_update returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCheckBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read check response: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	latest, err := stringField(doc, fieldLatest)
	if err != nil {
		return nil, err
	}
	canDownload, err := boolField(doc, fieldCanDownload)
	if err != nil {
		return nil, err
	}
	server, err := stringField(doc, fieldServerVersion)
	if err != nil {
		return nil, err
	}

	return &Release{
		Version:       latest,
		CanDownload:   canDownload,
		ServerVersion: server,
		DownloadURL:   s.baseURL + "/download",
		SignatureURL:  s.baseURL + "/download.sig",
	}, nil
}

func lookup(doc map[string]any, names []string) (any, error) {
	for _, n := range names {
		if v, ok := doc[n]; ok && v != nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, names[0])
}

func stringField(doc map[string]any, names []string) (string, error) {
	v, err := lookup(doc, names)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: field %q is not a version string", ErrMalformedResponse, names[0])
}

func boolField(doc map[string]any, names []string) (bool, error) {
	v, err := lookup(doc, names)
	if err != nil {
		return false, err
	}
	switch v := v.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: field %q is not a boolean", ErrMalformedResponse, names[0])
}
