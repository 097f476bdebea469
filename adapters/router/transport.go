package reportrouter

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-router"
)

func requestFromContext(c router.Context) (*http.Request, error) {
	target := &url.URL{Path: c.Path()}
	if raw := strings.TrimSpace(c.OriginalURL()); raw != "" {
		parsed, err := url.ParseRequestURI(raw)
		if err != nil {
			return nil, err
		}
		target = parsed
	}
	method := c.Method()
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(c.Context(), method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// bufferedResponse collects a response for routers without a native writer.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(c router.Context) error {
	for name, values := range b.header {
		c.SetHeader(name, strings.Join(values, ", "))
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	c.Status(status)
	return c.Send(b.body.Bytes())
}
