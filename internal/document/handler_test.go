package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccloud/internal/blob"
	"doccloud/internal/blob/mem"
	"doccloud/internal/document/model"
	"doccloud/internal/document/service"
)

type stubRepo struct {
	mu   sync.Mutex
	fail bool
}

func (r *stubRepo) Load(context.Context) (model.Snapshot, error) { return model.Snapshot{}, nil }

func (r *stubRepo) Save(context.Context, model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func newHandler(t *testing.T, blobs blob.Store, repo *stubRepo) *DocumentHandler {
	t.Helper()
	svc, err := service.NewDocumentService(context.Background(), blobs, repo)
	require.NoError(t, err)
	return NewDocumentHandler(svc)
}

func upload(h *DocumentHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/doc/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.Upload(rec, req)
	return rec
}

func TestHello(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	rec := httptest.NewRecorder()
	h.Hello(rec, httptest.NewRequest(http.MethodGet, "/api/hello", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())
}

func TestUpload(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})

	rec := upload(h, `{"name":"essay","text":"hello world"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.SaveDocResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "successfully uploaded", resp.Message)
	assert.True(t, resp.Appended)
	assert.Equal(t, 1, resp.VersionNumber)
	assert.True(t, strings.HasPrefix(resp.CID, "bafkrei"))
	assert.Empty(t, resp.Warning)

	rec = upload(h, `{"name":"essay","text":"hello world"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var dup model.SaveDocResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dup))
	assert.False(t, dup.Appended)
	assert.Equal(t, resp.CID, dup.CID)
}

func TestUploadEmptyTextIsAccepted(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	rec := upload(h, `{"name":"blank","text":""}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadBadRequests(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})

	for _, body := range []string{
		`{"text":"no name"}`,
		`{"name":"no text"}`,
		`{"name":"","text":"empty name"}`,
		`{"name":"` + strings.Repeat("n", MaxNameLength+1) + `","text":"x"}`,
		`not json`,
	} {
		rec := upload(h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		var resp model.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Message, "bad request")
	}
	assert.Empty(t, h.Service.ListAll())
}

func TestUploadFailure(t *testing.T) {
	failing := blob.StoreFunc(func(context.Context, []byte, blob.Metadata) (blob.Result, error) {
		return blob.Result{}, fmt.Errorf("%w: status 503", blob.ErrUpload)
	})
	h := newHandler(t, failing, &stubRepo{})

	rec := upload(h, `{"name":"essay","text":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed to upload", resp.Message)
	assert.Contains(t, resp.Error, "status 503")
}

func TestUploadPersistenceWarning(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{fail: true})

	rec := upload(h, `{"name":"essay","text":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.SaveDocResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Appended)
	assert.Contains(t, resp.Warning, "persistence failed")
}

func TestUploadMethodNotAllowed(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	rec := httptest.NewRecorder()
	h.Upload(rec, httptest.NewRequest(http.MethodGet, "/api/doc/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestGetDocuments(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	upload(h, `{"name":"essay","text":"one"}`)
	upload(h, `{"name":"essay","text":"two"}`)

	rec := httptest.NewRecorder()
	h.GetDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/doc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw["essay"], 2)
	assert.Equal(t, "one", raw["essay"][0]["text"])
	assert.Contains(t, raw["essay"][0], "timestamp")
	assert.Contains(t, raw["essay"][0], "cid")
}

func TestGetHistory(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	upload(h, `{"name":"essay","text":"one two three"}`)

	rec := httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/doc/history?name=essay", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	require.Len(t, resp.Versions, 1)
	assert.Equal(t, 3, resp.Versions[0].WordCount)

	rec = httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/doc/history?name=Essay", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "names are case sensitive")

	rec = httptest.NewRecorder()
	h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/doc/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSummaries(t *testing.T) {
	h := newHandler(t, mem.New(), &stubRepo{})
	upload(h, `{"name":"b","text":"x"}`)
	upload(h, `{"name":"a","text":"y"}`)

	rec := httptest.NewRecorder()
	h.GetSummaries(rec, httptest.NewRequest(http.MethodGet, "/api/doc/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []model.DocumentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "a", resp[0].Title)
	assert.Equal(t, "1", resp[0].ID)
}

func TestUploadReportsGatewayURL(t *testing.T) {
	store := mem.New()
	linked := blob.StoreFunc(func(ctx context.Context, data []byte, meta blob.Metadata) (blob.Result, error) {
		res, err := store.Upload(ctx, data, meta)
		res.URL = "https://gw.example/ipfs/" + res.ContentAddress
		return res, err
	})
	h := newHandler(t, linked, &stubRepo{})

	rec := upload(h, `{"name":"essay","text":"hello world"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.SaveDocResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://gw.example/ipfs/"+resp.CID, resp.GatewayURL)
}
