// Package render turns source documents (markdown) into HTML.
//
// Renderers are looked up by substring match against the declared source
// type, so "text/markdown", "text/x-web-markdown" and
// "text/markdown; charset=utf-8" all select the markdown renderer.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrRendererNotFound is returned when no renderer matches a source type.
var ErrRendererNotFound = errors.New("renderer not found")

// RenderError reports a source type with no matching renderer.
type RenderError struct {
	SourceType string
}

func (e *RenderError) Error() string {
	return "renderer not found for " + e.SourceType
}

// Is makes errors.Is(err, ErrRendererNotFound) hold.
func (e *RenderError) Is(target error) bool {
	return target == ErrRendererNotFound
}

// Func renders source into HTML.
type Func func(source []byte) (string, error)

type entry struct {
	match string
	fn    Func
}

// Registry holds renderers in registration order. The first renderer whose
// match string occurs in the source type wins.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry returns a registry with the markdown renderer installed.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("markdown", Markdown)
	return r
}

// Register appends a renderer selected when match occurs in the source type.
func (r *Registry) Register(match string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{match: match, fn: fn})
}

// Render renders source with the renderer matching sourceType.
func (r *Registry) Render(source []byte, sourceType string) (string, error) {
	r.mu.RLock()
	var fn Func
	for _, e := range r.entries {
		if strings.Contains(sourceType, e.match) {
			fn = e.fn
			break
		}
	}
	r.mu.RUnlock()

	if fn == nil {
		return "", &RenderError{SourceType: sourceType}
	}
	return fn(source)
}

var defaultRegistry = NewRegistry()

// Render renders source using the default registry.
func Render(source []byte, sourceType string) (string, error) {
	return defaultRegistry.Render(source, sourceType)
}

// markdown is shared; goldmark keeps per-call state in the parse context.
// Raw HTML in the source is dropped (goldmark's default, unsafe disabled).
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Markdown renders GitHub flavored markdown to an HTML fragment.
func Markdown(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(source, &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

// IsFragment reports whether html lacks a document root element.
func IsFragment(html string) bool {
	return !strings.Contains(strings.ToLower(html), "<html")
}
