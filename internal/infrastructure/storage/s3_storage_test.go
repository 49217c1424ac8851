package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogmirror/backend/internal/infrastructure/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeS3 answers path-style S3 requests. Objects listed in present exist.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	present  map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		if f.present[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func newTestArchive(t *testing.T, srv *httptest.Server, prefix string) *S3Archive {
	t.Helper()
	a, err := NewS3Archive(context.Background(), config.ArchiveConfig{
		Endpoint:     srv.URL,
		Bucket:       "mirror",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
		Prefix:       prefix,
	})
	require.NoError(t, err)
	return a
}

func TestNewS3Archive_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ArchiveConfig
		wantErr string
	}{
		{"missing bucket", config.ArchiveConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", config.ArchiveConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", config.ArchiveConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Archive(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid config", func(t *testing.T) {
		a, err := NewS3Archive(context.Background(), config.ArchiveConfig{
			Bucket: "b", AccessKey: "k", SecretKey: "s", Prefix: "/backups/",
		})
		require.NoError(t, err)
		assert.Equal(t, "b", a.Bucket())
		assert.Equal(t, "backups/x.json", a.objectKey("x.json"))
	})
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", false, ""},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, endpointURL(tt.endpoint, tt.useSSL))
		})
	}
}

func TestS3Archive_Put(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a := newTestArchive(t, srv, "image-backups")

	err := a.Put(context.Background(), "source.myshopify.com/42/1700000000.json", []byte(`[{"position":1}]`), "application/json")
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodPut, fake.requests[0].Method)
	assert.Equal(t, "/mirror/image-backups/source.myshopify.com/42/1700000000.json", fake.requests[0].Path)
	assert.Equal(t, `[{"position":1}]`, fake.requests[0].Body)

	assert.ErrorIs(t, a.Put(context.Background(), "", nil, "application/json"), errEmptyKey)
}

func TestS3Archive_Exists(t *testing.T) {
	fake := &fakeS3{present: map[string]bool{"/mirror/a.json": true}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a := newTestArchive(t, srv, "")

	ok, err := a.Exists(context.Background(), "a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Exists(context.Background(), "b.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3Archive_EnsureBucket(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	a := newTestArchive(t, srv, "")

	require.NoError(t, a.EnsureBucket(context.Background()))
	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodHead, fake.requests[0].Method)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
	assert.Equal(t, "/mirror", strings.TrimSuffix(fake.requests[1].Path, "/"))
}

func TestMemoryArchive(t *testing.T) {
	m := NewMemoryArchive()
	data := []byte("x")
	require.NoError(t, m.Put(context.Background(), "k", data, "text/plain"))
	data[0] = 'y'

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, 1, m.Len())
	assert.Error(t, m.Put(context.Background(), "", nil, ""))
}
