package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/compress"
	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/render"
)

const (
	versionsPrefix = "/_versions"
	purgePrefix    = "/_purge"
	metricsPath    = "/_metrics"

	// metaHeaderPrefix marks request headers that become extension meta
	// fields, e.g. "X-Meta-Author: jane" stores author=jane.
	metaHeaderPrefix = "X-Meta-"

	// maxRenderSource bounds sources buffered for rendering.
	maxRenderSource = 8 << 20
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	// Mounted so that any other method on these prefixes answers 405
	// instead of falling through to the content routes.
	r.Route(versionsPrefix, func(r chi.Router) {
		r.Get("/*", s.handleVersions)
	})
	r.Route(purgePrefix, func(r chi.Router) {
		r.With(s.limitWrites).Post("/*", s.handlePurge)
	})
	if s.scrape != nil {
		r.Method(http.MethodGet, metricsPath, s.scrape)
	}

	r.Get("/*", s.serveContent)
	r.Head("/*", s.serveContent)
	r.With(s.limitWrites).Put("/*", s.storeContent)
	r.With(s.limitWrites).Delete("/*", s.deleteContent)
	return r
}

// requestKey maps a request onto the ContentKey <host>:<path>, where path
// is the wildcard part of the matched route.
func requestKey(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return content.CKey(strings.ToLower(host), wildcardPath(r))
}

// wildcardPath returns the route's "*" parameter as an absolute path. chi
// matches on the escaped path when one is present, so it is unescaped here.
func wildcardPath(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
	}
	return "/" + p
}

// serveContent writes the current revision of key.
//
// The body is the stored gzip stream when the client accepts gzip, and the
// decompressed bytes otherwise. Meta and data are read by the same
// ContentID so a concurrent write cannot mix two revisions.
func (s *Server) serveContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := requestKey(r)

	meta, found, err := s.mgr.GetMeta(ctx, key)
	if err != nil {
		logger.Error("GET %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	etag := strconv.Quote(meta.Digest)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	if !meta.Mtime.IsZero() {
		h.Set("Last-Modified", meta.Mtime.UTC().Format(http.TimeFormat))
	}
	if settings := s.mgr.Settings(); settings.Expires(meta.Type) {
		h.Set("Cache-Control", "max-age="+strconv.Itoa(settings.ExpireSecs))
	}

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		s.metrics.RecordNotModified()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", meta.Type)

	passthrough := meta.ContentEncoding == "" || acceptsGzip(r.Header.Get("Accept-Encoding"))
	if passthrough {
		if meta.ContentEncoding != "" {
			h.Set("Content-Encoding", meta.ContentEncoding)
		}
		h.Set("Content-Length", strconv.FormatInt(meta.Len, 10))
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Peek before committing to a status: the revision may have been pruned
	// since its meta was read.
	rs := s.mgr.GetDataStream(ctx, meta.ID.String())
	defer func() { _ = rs.Close() }()
	body := bufio.NewReader(rs)
	if _, err := body.Peek(1); err != nil && err != io.EOF {
		if errors.Is(err, content.ErrNotFound) {
			h.Del("Content-Length")
			h.Del("Content-Encoding")
			http.NotFound(w, r)
			return
		}
		logger.Error("GET %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var src io.Reader = body
	if !passthrough {
		zr, err := compress.NewReader(body)
		if err != nil {
			logger.Error("GET %s: revision %s is not valid %s: %v", key, meta.ID, meta.ContentEncoding, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = zr.Close() }()
		src = zr
	}

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, src); err != nil {
		// Headers are gone; all that is left is to log and drop the connection
		logger.Warn("GET %s: body aborted: %v", key, err)
	}
}

type storeResponse struct {
	Key    string `json:"key"`
	ID     string `json:"id"`
	Digest string `json:"digest"`
	Length int64  `json:"length"`
}

// storeContent stores the request body as a new revision of key. With
// ?render the body is a source document (markdown) rendered to HTML first.
func (s *Server) storeContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := requestKey(r)

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ext := metaFromHeaders(r.Header)

	var (
		res content.SetResult
		err error
	)
	if _, ok := r.URL.Query()["render"]; ok {
		var source []byte
		source, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderSource))
		if err != nil {
			http.Error(w, "failed to read source: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.metrics.RecordBytesTransferred("in", int64(len(source)))
		res, err = s.mgr.SetFromSource(ctx, key, source, contentType, ext)
	} else {
		body := &countingReader{r: r.Body}
		res, err = s.mgr.SetStream(ctx, key, body, contentType, ext)
		s.metrics.RecordBytesTransferred("in", body.n)
	}

	switch {
	case err == nil:
	case errors.Is(err, render.ErrRendererNotFound):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, content.ErrUpstream):
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	case errors.Is(err, content.ErrInvalidMeta):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		logger.Error("PUT %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", strconv.Quote(res.Digest))
	writeJSON(w, http.StatusCreated, storeResponse{
		Key:    key,
		ID:     res.ID.String(),
		Digest: res.Digest,
		Length: res.Length,
	})
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)
	if err := s.mgr.Del(r.Context(), key); err != nil {
		logger.Error("DELETE %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type versionsResponse struct {
	Key      string   `json:"key"`
	Versions []string `json:"versions"`
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)
	ids, err := s.mgr.GetAllVersions(r.Context(), key)
	if err != nil {
		logger.Error("versions %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := versionsResponse{Key: key, Versions: make([]string, len(ids))}
	for i, id := range ids {
		resp.Versions[i] = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type purgeResponse struct {
	Key    string `json:"key"`
	Pruned int    `json:"pruned"`
}

// handlePurge prunes revisions past ?keep=N (default: the configured
// retention). A prune that lost to a concurrent write answers 409.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	keep := s.mgr.Settings().Revisions
	if raw := r.URL.Query().Get("keep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "keep must be a positive integer", http.StatusBadRequest)
			return
		}
		keep = n
	}

	key := requestKey(r)
	pruned, err := s.mgr.PurgeVersions(r.Context(), key, keep)
	switch {
	case err == nil:
	case errors.Is(err, content.ErrPruneConflict):
		http.Error(w, "concurrent write, retry later", http.StatusConflict)
		return
	default:
		logger.Error("purge %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, purgeResponse{Key: key, Pruned: pruned})
}

// limitWrites applies the write rate limit, answering 429 when exceeded.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.writes != nil && !s.writes.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.writes.RetryAfter()/time.Second)))
			http.Error(w, "too many writes", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metaFromHeaders collects X-Meta-* headers as extension fields. Field names
// are lowercased since header names are case-insensitive.
func metaFromHeaders(h http.Header) map[string]string {
	var ext map[string]string
	for name, values := range h {
		if len(values) == 0 || !strings.HasPrefix(name, metaHeaderPrefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(name, metaHeaderPrefix))
		if field == "" {
			continue
		}
		if ext == nil {
			ext = make(map[string]string)
		}
		ext[field] = values[0]
	}
	return ext
}

// etagMatches implements the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// acceptsGzip reports whether Accept-Encoding allows gzip.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != compress.Encoding && coding != "*" {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		if q == "q=0" || q == "q=0.0" || q == "q=0.00" || q == "q=0.000" {
			return false
		}
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response: %v", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
