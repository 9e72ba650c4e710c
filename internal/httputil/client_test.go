package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientOptions{})
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", client.Timeout)
	}
	ua, ok := client.Transport.(*userAgentTransport)
	if !ok {
		t.Fatalf("Transport = %T", client.Transport)
	}
	if !strings.HasPrefix(ua.agent, "aigene/") {
		t.Errorf("agent = %q", ua.agent)
	}
	tr := ua.base.(*http.Transport)
	if !tr.DisableCompression {
		t.Error("expected compression to be disabled")
	}
	if tr.ResponseHeaderTimeout != 30*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v", tr.ResponseHeaderTimeout)
	}
}

func TestNewClientSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{UserAgent: "aigene/test"})
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got != "aigene/test" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestRedirectWithinPrivateNetworkAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/download" {
			http.Redirect(w, r, "/files/update.zip", http.StatusFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := NewClient(ClientOptions{}).Get(srv.URL + "/download")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.Request.URL.Path != "/files/update.zip" {
		t.Errorf("final path = %s", resp.Request.URL.Path)
	}
}

func mustRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRedirectChecker(t *testing.T) {
	check := redirectChecker(3)
	public := mustRequest(t, "https://93.184.216.34/download")
	private := mustRequest(t, "http://10.1.2.3/download")

	tests := []struct {
		name string
		to   string
		via  []*http.Request
		want string
	}{
		{"https downgrade", "http://93.184.216.34/x", []*http.Request{public}, "from https"},
		{"public to private", "https://192.168.0.10/x", []*http.Request{public}, "private"},
		{"public to loopback", "https://127.0.0.1/x", []*http.Request{public}, "loopback"},
		{"public to public", "https://8.8.8.8/x", []*http.Request{public}, ""},
		{"private to private", "http://10.1.2.4/x", []*http.Request{private}, ""},
		{"too many", "https://8.8.8.8/x", []*http.Request{public, public, public}, "redirects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := check(mustRequest(t, tt.to), tt.via)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
