package llm

import (
	"net/http"
	"net/url"
	"time"
)

// newHTTPClient builds the client both providers use. An explicit proxy in the
// config wins over HTTP_PROXY/HTTPS_PROXY.
func newHTTPClient(config Config, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(config.Proxy)
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func proxyFunc(proxy string) func(*http.Request) (*url.URL, error) {
	if proxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		return url.Parse(proxy)
	}
}
