// Package httpclient provides the shared upstream HTTP client the Router
// uses for every dialect call: a single req.Client with a configurable
// overall timeout and system-proxy detection.
package httpclient

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"
)

var (
	defaultClient *req.Client
	once          sync.Once
	defaultTO     time.Duration = 10 * time.Minute
)

// SetDefaultTimeout configures the timeout used by GetClient's lazily
// constructed singleton. Call before the first GetClient; main wires this
// from ServerConfig.UpstreamTimeout.
func SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		defaultTO = d
	}
}

// GetClient returns the process-wide shared client.
func GetClient() *req.Client {
	once.Do(func() {
		defaultClient = NewClient("", defaultTO)
	})
	return defaultClient
}

// NewClient creates a client with the given overall timeout. proxyURL
// overrides system proxy detection when non-empty.
func NewClient(proxyURL string, timeout time.Duration) *req.Client {
	if timeout <= 0 {
		timeout = defaultTO
	}
	client := req.C().SetTimeout(timeout)

	proxy := strings.TrimSpace(proxyURL)
	if proxy == "" {
		proxy = GetSystemProxy()
	}
	if proxy != "" {
		client.SetProxyURL(proxy)
	}

	return client
}

// GetSystemProxy returns the system proxy URL from environment variables.
func GetSystemProxy() string {
	envVars := []string{
		"HTTPS_PROXY", "https_proxy",
		"HTTP_PROXY", "http_proxy",
		"ALL_PROXY", "all_proxy",
	}
	for _, env := range envVars {
		if proxy := os.Getenv(env); proxy != "" {
			return proxy
		}
	}
	return ""
}
