package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>T</title><style>body{}</style></head><body>
<nav><a href="/">Home</a></nav>
<main>
<h1>Eiffel Tower</h1>
<p>The tower was completed in <strong>1889</strong>.</p>
<script>track()</script>
</main>
<footer>Copyright</footer>
</body></html>`

func TestFetchConvertsHTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	text, err := NewHTTPWithClient(srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "# Eiffel Tower")
	assert.Contains(t, text, "**1889**")
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "Home")
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "  just text  ")
	}))
	defer srv.Close()

	text, err := NewHTTPWithClient(srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "just text", text)
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewHTTPWithClient(srv.Client()).Fetch(context.Background(), srv.URL)
	assert.EqualError(t, err, "fetch http 410: gone")
}

func TestFetchEmptyURL(t *testing.T) {
	_, err := NewHTTP().Fetch(context.Background(), " ")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxFetchBytes+10)
	out := truncate(long)
	assert.True(t, strings.HasSuffix(out, "[TRUNCATED]"))
	assert.Len(t, out, maxFetchBytes+len("\n[TRUNCATED]"))

	assert.Equal(t, "short", truncate("short"))
}
