package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path   string
	auth   string
	apikey string
	body   map[string]any
}

// captureServer records the last request path, bearer token and JSON body, then answers with reply.
func captureServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()

	c := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		c.apikey = r.Header.Get("apikey")
		c.body = map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	return server, c
}

func TestClient_SignUpload(t *testing.T) {
	server, got := captureServer(t, http.StatusOK, `{"path":"tmp/sess-1/abc.jpg","signedUrl":"https://x/upload","token":"t"}`)
	client := newTestClient(t, server.URL)

	resp, err := client.SignUpload(context.Background(), SignUploadRequest{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.Equal(t, "tmp/sess-1/abc.jpg", resp.Path)
	assert.Equal(t, "/functions/v1/sign-upload", got.path)
	assert.Equal(t, "Bearer anon-key", got.auth)
	assert.Empty(t, got.apikey)
	assert.Equal(t, map[string]any{
		"sessionId":  "sess-1",
		"bucket":     DefaultBucket,
		"mime":       DefaultMime,
		"pathPrefix": DefaultPathPrefix,
	}, got.body)
}

func TestClient_ServiceRoleFunctions(t *testing.T) {
	server, got := captureServer(t, http.StatusOK, `{"ok":true}`)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	t.Run("moderate-text sends null ids", func(t *testing.T) {
		_, err := client.ModerateText(ctx, ModerateTextRequest{ReportID: "r1", Text: "hello"})
		require.NoError(t, err)

		assert.Equal(t, "/functions/v1/moderate-text", got.path)
		assert.Equal(t, "Bearer service-key", got.auth)
		assert.Equal(t, DefaultOutputType, got.body["outputType"])
		assert.Contains(t, got.body, "media_id")
		assert.Nil(t, got.body["media_id"])
		assert.Nil(t, got.body["chunk_id"])
	})

	t.Run("moderate-image uses a short read expiry", func(t *testing.T) {
		_, err := client.ModerateImage(ctx, ModerateImageRequest{ReportID: "r1", Path: "tmp/a.jpg"})
		require.NoError(t, err)

		assert.Equal(t, "/functions/v1/moderate-image", got.path)
		assert.InDelta(t, float64(DefaultModerateImageSecs), got.body["expiresSec"], 0)
		assert.Equal(t, DefaultBucket, got.body["bucket"])
	})

	t.Run("ingest-text omits media id when unset", func(t *testing.T) {
		_, err := client.IngestText(ctx, IngestTextRequest{ReportID: "r1", Text: "hello"})
		require.NoError(t, err)

		assert.Equal(t, "/functions/v1/ingest-text", got.path)
		assert.Equal(t, DefaultLang, got.body["lang"])
		assert.NotContains(t, got.body, "media_id")
	})

	t.Run("process-screenshot", func(t *testing.T) {
		_, err := client.ProcessScreenshot(ctx, ProcessScreenshotRequest{ReportID: "r1", Path: "tmp/a.jpg"})
		require.NoError(t, err)

		assert.Equal(t, "/functions/v1/process-screenshot", got.path)
		assert.Equal(t, "Bearer service-key", got.auth)
		assert.Equal(t, DefaultMime, got.body["mime"])
	})
}

func TestClient_Search(t *testing.T) {
	server, got := captureServer(t, http.StatusOK, `{"results":[]}`)
	client := newTestClient(t, server.URL)

	out, err := client.Search(context.Background(), SearchRequest{QueryText: "hello"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"results":[]}`, string(out))
	assert.Equal(t, "Bearer anon-key", got.auth)
	assert.InDelta(t, float64(DefaultSearchK), got.body["k"], 0)
	assert.Contains(t, got.body, "report_id")
	assert.Nil(t, got.body["report_id"])
}

func TestClient_OCRExtract(t *testing.T) {
	server, got := captureServer(t, http.StatusOK, `{"text":"hi"}`)
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	t.Run("image URL", func(t *testing.T) {
		_, err := client.OCRExtract(ctx, OCRExtractRequest{ImageURL: "https://img/x.png", Path: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"imageUrl": "https://img/x.png"}, got.body)
	})

	t.Run("storage path", func(t *testing.T) {
		_, err := client.OCRExtract(ctx, OCRExtractRequest{Path: "tmp/a.jpg"})
		require.NoError(t, err)
		assert.Equal(t, "tmp/a.jpg", got.body["path"])
		assert.Equal(t, DefaultBucket, got.body["bucket"])
		assert.InDelta(t, float64(DefaultReadExpiresSec), got.body["expiresSec"], 0)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := client.OCRExtract(ctx, OCRExtractRequest{})
		require.ErrorIs(t, err, ErrOCRSourceRequired)
	})
}

func TestClient_InvokeErrors(t *testing.T) {
	t.Run("function error body", func(t *testing.T) {
		server, _ := captureServer(t, http.StatusUnauthorized, `{"error":"Invalid JWT"}`)
		client := newTestClient(t, server.URL)

		_, err := client.SignRead(context.Background(), SignReadRequest{Path: "tmp/a.jpg"})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
		assert.Contains(t, err.Error(), "Invalid JWT")
	})

	t.Run("missing service role key", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:1", func(o *Options) { o.ServiceRoleKey = "" })

		_, err := client.ModerateText(context.Background(), ModerateTextRequest{ReportID: "r", Text: "t"})
		require.ErrorIs(t, err, ErrMissingKey)
	})
}

func TestClient_Probe(t *testing.T) {
	server, got := captureServer(t, http.StatusUnauthorized, `{"msg":"missing authorization"}`)
	client := newTestClient(t, server.URL)

	status, body, err := client.Probe(context.Background(), "sign-upload", AuthNone, map[string]any{"sessionId": "s"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "missing authorization")
	assert.Empty(t, got.auth)
}
