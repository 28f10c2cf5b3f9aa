package githubapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/everstacklabs/orgsync/internal/cache"
)

func TestCachingServesFreshEntryWithoutRequest(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"login":"acme"}`))
	}))
	defer srv.Close()

	store, err := cache.New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &caching{next: http.DefaultTransport, store: store}}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/orgs/acme")
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != `{"login":"acme"}` {
			t.Fatalf("body = %q", body)
		}
	}

	if hits != 1 {
		t.Errorf("fresh entry must be served from cache, got %d upstream hits", hits)
	}
}

func TestCachingRevalidatesStaleEntry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"login":"acme"}`))
	}))
	defer srv.Close()

	store, err := cache.New(t.TempDir(), time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &caching{next: http.DefaultTransport, store: store}}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/orgs/acme")
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != `{"login":"acme"}` {
			t.Fatalf("pass %d: body = %q", i, body)
		}
		time.Sleep(time.Millisecond)
	}

	if hits != 2 {
		t.Errorf("stale entry must revalidate upstream, got %d hits", hits)
	}
}

func TestCachingPreservesPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", `<`+srv.URL+`/orgs/acme/repos?page=2>; rel="next"`)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"name":"site"}]`))
		default:
			w.Write([]byte(`[{"name":"tooling"}]`))
		}
	}))
	defer srv.Close()

	store, err := cache.New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &caching{next: http.DefaultTransport, store: store}}

	// Warm the cache, then replay: the Link header drives pagination and
	// must survive the round trip through the cache.
	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/orgs/acme/repos")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("Link"); got == "" {
			t.Fatalf("pass %d: Link header lost", i)
		}
		if got := resp.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("pass %d: Content-Type = %q", i, got)
		}
	}
}

func TestCachingSkipsWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	store, err := cache.New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &caching{next: http.DefaultTransport, store: store}}

	resp, err := client.Post(srv.URL+"/orgs/acme/hooks", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if entry, _ := store.Get(srv.URL + "/orgs/acme/hooks"); entry != nil {
		t.Error("write responses must not be cached")
	}
}
