// Package davtest runs an in-memory WebDAV server for tests.
package davtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/webdav"
)

const (
	Username = "alice"
	Password = "s3cret-pass"
)

type fault struct {
	method string
	status int
	times  int
}

// Server is a WebDAV server backed by webdav.NewMemFS with basic auth.
// PUT honours If-Match against the etag the server reports.
type Server struct {
	*httptest.Server
	FS webdav.FileSystem

	mu     sync.Mutex
	faults []*fault
	counts map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		FS:     webdav.NewMemFS(),
		counts: map[string]int{},
	}
	handler := &webdav.Handler{
		FileSystem: s.FS,
		LockSystem: webdav.NewMemLS(),
	}
	s.Server = httptest.NewServer(s.middleware(handler))
	t.Cleanup(s.Close)
	return s
}

// FailNext makes the next n requests with method answer status.
func (s *Server) FailNext(method string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &fault{method: method, status: status, times: n})
}

// Count returns how many requests with method reached the server.
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method]
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[r.Method]++
		var status int
		for i, f := range s.faults {
			if f.method == r.Method && f.times > 0 {
				f.times--
				status = f.status
				if f.times == 0 {
					s.faults = append(s.faults[:i], s.faults[i+1:]...)
				}
				break
			}
		}
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != Username || pass != Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="davtest"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if r.Method == http.MethodPut {
			if want := r.Header.Get("If-Match"); want != "" && want != s.ETag(r.URL.Path) {
				http.Error(w, "precondition failed", http.StatusPreconditionFailed)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ETag returns the tag the server reports for name, or "" when it does not exist.
func (s *Server) ETag(name string) string {
	fi, err := s.FS.Stat(context.Background(), name)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`"%x%x"`, fi.ModTime().UnixNano(), fi.Size())
}

// WriteFile stores data at name, creating parent collections.
func (s *Server) WriteFile(t testing.TB, name string, data []byte) {
	t.Helper()
	ctx := context.Background()

	dir := path.Dir(path.Clean("/" + name))
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		if err := s.FS.Mkdir(ctx, cur, 0o755); err != nil && !os.IsExist(err) {
			t.Fatalf("davtest: mkdir %s: %v", cur, err)
		}
	}

	f, err := s.FS.OpenFile(ctx, name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("davtest: open %s: %v", name, err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("davtest: write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("davtest: close %s: %v", name, err)
	}
}

// ReadFile returns the content stored at name.
func (s *Server) ReadFile(t testing.TB, name string) []byte {
	t.Helper()
	f, err := s.FS.OpenFile(context.Background(), name, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("davtest: open %s: %v", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("davtest: read %s: %v", name, err)
	}
	return data
}

// Exists reports whether name exists on the server.
func (s *Server) Exists(name string) bool {
	_, err := s.FS.Stat(context.Background(), name)
	return err == nil
}

// ModTime returns the modification time of name.
func (s *Server) ModTime(t testing.TB, name string) time.Time {
	t.Helper()
	fi, err := s.FS.Stat(context.Background(), name)
	if err != nil {
		t.Fatalf("davtest: stat %s: %v", name, err)
	}
	return fi.ModTime()
}

// LastModified returns the modification time of name as served in
// getlastmodified, which carries whole seconds.
func (s *Server) LastModified(t testing.TB, name string) time.Time {
	t.Helper()
	return s.ModTime(t, name).UTC().Truncate(time.Second)
}

// List returns the entries of the collection at dir.
func (s *Server) List(t testing.TB, dir string) []string {
	t.Helper()
	f, err := s.FS.OpenFile(context.Background(), dir, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("davtest: open %s: %v", dir, err)
	}
	defer f.Close()
	infos, err := f.Readdir(-1)
	if err != nil {
		t.Fatalf("davtest: readdir %s: %v", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}
