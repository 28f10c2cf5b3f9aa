package githubapi

import (
	"bytes"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/everstacklabs/orgsync/internal/cache"
)

// throttled rate-limits every request before it reaches the API.
type throttled struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttled) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// caching serves GET responses from a disk cache, revalidating stale entries
// with conditional requests. Writes pass straight through.
type caching struct {
	next  http.RoundTripper
	store *cache.Store
}

func (c *caching) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.next.RoundTrip(req)
	}

	key := req.URL.String()
	entry, fresh := c.store.Get(key)
	if fresh {
		return cachedResponse(req, entry), nil
	}
	if entry != nil {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastMod != "" {
			req.Header.Set("If-Modified-Since", entry.LastMod)
		}
	}

	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && entry != nil {
		resp.Body.Close()
		_ = c.store.Put(key, entry) // refresh TTL
		return cachedResponse(req, entry), nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		_ = c.store.Put(key, &cache.Entry{
			Body:        body,
			ETag:        resp.Header.Get("ETag"),
			LastMod:     resp.Header.Get("Last-Modified"),
			Link:        resp.Header.Get("Link"),
			ContentType: resp.Header.Get("Content-Type"),
			StatusCode:  resp.StatusCode,
		})
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

func cachedResponse(req *http.Request, entry *cache.Entry) *http.Response {
	header := http.Header{}
	if entry.Link != "" {
		header.Set("Link", entry.Link)
	}
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	return &http.Response{
		Status:     http.StatusText(entry.StatusCode),
		StatusCode: entry.StatusCode,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}
}
