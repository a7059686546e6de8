package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Markdown(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
	}{
		{"closest standard mime type", "text/x-web-markdown"},
		{"text/markdown", "text/markdown"},
		{"with charset", "text/markdown; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := Render([]byte("# Hello"), tt.sourceType)
			require.NoError(t, err)
			assert.Equal(t, "<h1>Hello</h1>\n", html)
		})
	}
}

func TestRender_NotFound(t *testing.T) {
	_, err := Render([]byte("foo"), "bad-type")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRendererNotFound))
	assert.EqualError(t, err, "renderer not found for bad-type")

	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "bad-type", re.SourceType)
}

func TestRender_GFMTable(t *testing.T) {
	html, err := Render([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"), "text/markdown")
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
}

func TestRender_RawHTMLDropped(t *testing.T) {
	html, err := Render([]byte("<script>alert(1)</script>\n"), "text/markdown")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := &Registry{}
	r.Register("text", func([]byte) (string, error) { return "first", nil })
	r.Register("text/plain", func([]byte) (string, error) { return "second", nil })

	out, err := r.Render(nil, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	r.Register("upper", func(src []byte) (string, error) { return strings.ToUpper(string(src)), nil })
	out, err = r.Render([]byte("abc"), "x-upper")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestIsFragment(t *testing.T) {
	assert.True(t, IsFragment("<h1>Hello</h1>\n"))
	assert.False(t, IsFragment("<!DOCTYPE html><HTML><body></body></HTML>"))
}
