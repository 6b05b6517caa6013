// Package httpprov implements the HTTP fetch provider: a HEAD request to
// size the content, then one Range GET per chunk.
package httpprov

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	fetch "github.com/Comanx/go-fetch"
)

// Provider fetches over HTTP. One Provider may be shared by all channels;
// the underlying http.Client does its own connection pooling.
type Provider struct {
	client *http.Client
}

// New creates an HTTP provider. A nil client selects a private default.
func New(client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{}
	}
	return &Provider{client: client}
}

// resource is the per-request state: just the URL, since the client holds
// the connections.
type resource struct {
	url string
}

// OpenAndSize sizes the content with a HEAD request, falling back to a
// one-byte Range GET for servers that refuse HEAD. A size of zero is
// reported when the server cannot vouch for the decoded length, e.g. when
// the response is content-encoded; the engine then streams until a short
// read.
func (p *Provider) OpenAndSize(path string) (any, int64, error) {
	size, err := p.headSize(path)
	if err != nil {
		return nil, 0, err
	}
	if size < 0 {
		size, err = p.probeSize(path)
		if err != nil {
			return nil, 0, err
		}
	}
	return &resource{url: path}, size, nil
}

// headSize returns the content size from a HEAD request, or -1 when the
// server refused HEAD and a probe is needed.
func (p *Provider) headSize(url string) (int64, error) {
	resp, err := p.client.Head(url)
	if err != nil {
		return 0, fmt.Errorf("httpprov: head %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotImplemented:
		return -1, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("httpprov: head %s: status %s", url, resp.Status)
	case resp.Header.Get("Content-Encoding") != "":
		// The advertised length counts encoded bytes, not what a GET
		// will deliver.
		return 0, nil
	case resp.ContentLength < 0:
		return 0, nil
	}
	return resp.ContentLength, nil
}

// probeSize asks for the first byte and reads the total off Content-Range.
func (p *Provider) probeSize(url string) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("httpprov: probe %s: %w", url, err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpprov: probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return parseContentRangeTotal(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		if resp.ContentLength < 0 {
			return 0, nil
		}
		return resp.ContentLength, nil
	}
	return 0, fmt.Errorf("httpprov: probe %s: status %s", url, resp.Status)
}

// parseContentRangeTotal extracts the total from "bytes 0-0/N". A "/*"
// total means the server does not know it.
func parseContentRangeTotal(value string) (int64, error) {
	_, total, ok := strings.Cut(value, "/")
	if !ok {
		return 0, fmt.Errorf("httpprov: malformed Content-Range %q", value)
	}
	if total == "*" {
		return 0, nil
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("httpprov: malformed Content-Range %q", value)
	}
	return n, nil
}

// ReadRange fetches one chunk with a Range GET. A server that answers 200
// to a ranged request is only acceptable for the first chunk, where the
// window is a prefix of the body.
func (p *Provider) ReadRange(res any, offset int64, dst []byte) (int, error) {
	r := res.(*resource)
	req, err := http.NewRequest(http.MethodGet, r.url, nil)
	if err != nil {
		return 0, fmt.Errorf("httpprov: get %s: %w", r.url, err)
	}
	req.Header.Set("Range",
		fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(dst))-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpprov: get %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if offset != 0 {
			return 0, fmt.Errorf("httpprov: get %s: server ignored range request", r.url)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// Reading exactly at the end of unknown-size content.
		return 0, nil
	default:
		return 0, fmt.Errorf("httpprov: get %s: status %s", r.url, resp.Status)
	}

	n, err := io.ReadFull(resp.Body, dst)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// Shorter body than the requested window; end of content.
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("httpprov: get %s: %w", r.url, err)
	}
	return n, nil
}

// Close implements the provider interface. Connections belong to the
// shared client, so there is nothing per-request to release.
func (p *Provider) Close(any) {}

// Compile-time interface check
var _ fetch.Provider = (*Provider)(nil)
