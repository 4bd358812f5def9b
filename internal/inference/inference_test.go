package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foretrack/internal/log"
)

func fakeGemini(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(raw, &req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 && gotPrompt != nil {
			*gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "test-model",
		Endpoint:   srv.URL + "/",
		Timeout:    5 * time.Second,
		HTTPClient: srv.Client(),
	}, log.Discard())
	require.NoError(t, err)
	return g
}

func TestGeminiGenerate(t *testing.T) {
	var prompt string
	srv := fakeGemini(t, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`, &prompt)
	g := newTestClient(t, srv)

	out, err := g.Generate(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
	assert.Equal(t, "say hi", prompt)
}

func TestGeminiEmptyAndErrors(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		g := newTestClient(t, fakeGemini(t, http.StatusOK, `{"candidates":[]}`, nil))
		_, err := g.Generate(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmpty)
	})
	t.Run("server error", func(t *testing.T) {
		g := newTestClient(t, fakeGemini(t, http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`, nil))
		_, err := g.Generate(context.Background(), "x")
		assert.Error(t, err)
	})
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{}, log.Discard())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDisabledAndStatic(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)

	out, err := Static{Text: "ok"}.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
