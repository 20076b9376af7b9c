// Package gcstest runs an in-memory stand-in for the GCS JSON and XML APIs,
// enough for storage.Client reads, listings and single-request uploads.
package gcstest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
)

// Server holds objects keyed by "bucket/object".
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
	delays  map[string]time.Duration
}

// NewServer starts a server and a storage client that talks to it. Both are
// closed when the test ends.
func NewServer(t *testing.T) (*Server, *storage.Client) {
	t.Helper()
	s := &Server{objects: map[string][]byte{}, delays: map[string]time.Duration{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	t.Setenv("STORAGE_EMULATOR_HOST", s.URL)
	client, err := storage.NewClient(context.Background())
	if err != nil {
		t.Fatalf("storage.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return s, client
}

// Put stores an object.
func (s *Server) Put(bucket, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+name] = data
}

// Get returns an object and whether it exists.
func (s *Server) Get(bucket, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+name]
	return data, ok
}

// Names lists the stored objects of a bucket, sorted.
func (s *Server) Names(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for key := range s.objects {
		if b, name, _ := strings.Cut(key, "/"); b == bucket {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Delay holds back reads of one object by d.
func (s *Server) Delay(bucket, name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[bucket+"/"+name] = d
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	segs := pathSegments(r.URL)
	switch {
	case r.Method == http.MethodPost && len(segs) >= 5 && segs[0] == "upload":
		// /upload/storage/v1/b/{bucket}/o
		s.upload(w, r, segs[4])
	case r.Method == http.MethodGet && len(segs) == 5 && segs[0] == "storage" && segs[4] == "o":
		// /storage/v1/b/{bucket}/o
		s.list(w, r, segs[3])
	case r.Method == http.MethodGet && len(segs) >= 6 && segs[0] == "storage":
		// /storage/v1/b/{bucket}/o/{object}
		s.read(w, segs[3], strings.Join(segs[5:], "/"))
	case r.Method == http.MethodGet && len(segs) >= 7 && segs[0] == "download":
		// /download/storage/v1/b/{bucket}/o/{object}
		s.read(w, segs[4], strings.Join(segs[6:], "/"))
	case r.Method == http.MethodGet && len(segs) >= 2:
		// XML API: /{bucket}/{object}
		s.read(w, segs[0], strings.Join(segs[1:], "/"))
	default:
		writeError(w, http.StatusNotImplemented, "unsupported request "+r.Method+" "+r.URL.Path)
	}
}

func pathSegments(u *url.URL) []string {
	raw := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if v, err := url.PathUnescape(s); err == nil {
			s = v
		}
		segs = append(segs, s)
	}
	return segs
}

func (s *Server) read(w http.ResponseWriter, bucket, name string) {
	s.mu.Lock()
	data, ok := s.objects[bucket+"/"+name]
	delay := s.delays[bucket+"/"+name]
	s.mu.Unlock()

	time.Sleep(delay)
	if !ok {
		writeError(w, http.StatusNotFound, "No such object: "+bucket+"/"+name)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Goog-Generation", "1")
	w.Header().Set("X-Goog-Metageneration", "1")
	w.Write(data)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, bucket string) {
	prefix := r.URL.Query().Get("prefix")
	var items []map[string]any
	for _, name := range s.Names(bucket) {
		if strings.HasPrefix(name, prefix) {
			items = append(items, objectResource(bucket, name, 0))
		}
	}
	writeJSON(w, map[string]any{"kind": "storage#objects", "items": items})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, bucket string) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeError(w, http.StatusNotImplemented, "only multipart uploads are supported")
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing metadata part")
		return
	}
	var meta struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "bad metadata")
		return
	}
	if meta.Name == "" {
		meta.Name = r.URL.Query().Get("name")
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing media part")
		return
	}
	data, err := io.ReadAll(mediaPart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad media")
		return
	}

	s.mu.Lock()
	key := bucket + "/" + meta.Name
	_, exists := s.objects[key]
	if exists && r.URL.Query().Get("ifGenerationMatch") == "0" {
		s.mu.Unlock()
		writeError(w, http.StatusPreconditionFailed, "At least one of the pre-conditions you specified did not hold.")
		return
	}
	s.objects[key] = data
	s.mu.Unlock()

	writeJSON(w, objectResource(bucket, meta.Name, len(data)))
}

func objectResource(bucket, name string, size int) map[string]any {
	return map[string]any{
		"kind":           "storage#object",
		"bucket":         bucket,
		"name":           name,
		"size":           strconv.Itoa(size),
		"generation":     "1",
		"metageneration": "1",
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, message)
}
