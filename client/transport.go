package client

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// Transport defines the HTTP exchange primitive used by a session.
// An *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

type idleCloser interface {
	CloseIdleConnections()
}

// newHTTPTransport delivers an http client holding the session cookie jar.
func newHTTPTransport(cfg *SessionConfig) (Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	if cfg.httpClient != nil {
		c := *cfg.httpClient
		if c.Jar == nil {
			c.Jar = jar
		}
		if cfg.timeout > 0 {
			c.Timeout = cfg.timeout
		}
		return &c, nil
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint: gosec
	}
	return &http.Client{Jar: jar, Timeout: cfg.timeout, Transport: tr}, nil
}

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks github.com/damianoneill/mgmt/client Transport
