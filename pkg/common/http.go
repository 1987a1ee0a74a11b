package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the build version embedded from the VERSION file.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent on every outgoing request.
func UserAgent() string {
	return "PVPCNext/" + Version()
}

// defaultHeaders fills in User-Agent and, when the caller didn't set one,
// Accept.
type defaultHeaders struct {
	next   http.RoundTripper
	accept string
}

func (d defaultHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent())
	if d.accept != "" && req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", d.accept)
	}
	return d.next.RoundTrip(req)
}

// HTTPClientAccepting returns a client with the given timeout that identifies
// itself with UserAgent and asks for accept unless a request sets its own
// Accept header.
func HTTPClientAccepting(timeout time.Duration, accept string) *http.Client {
	return &http.Client{
		Transport: defaultHeaders{next: http.DefaultTransport, accept: accept},
		Timeout:   timeout,
	}
}
