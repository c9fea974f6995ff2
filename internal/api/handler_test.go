package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestmatch/internal/domain"
)

type fakeComparer struct {
	result  domain.ComparisonResult
	ranked  []domain.CandidateScore
	history []domain.HistoryRecord
	err     error

	seenPath   string
	seenExists bool
	seenLimit  int
}

func (f *fakeComparer) Compare(_ context.Context, path string) (domain.ComparisonResult, error) {
	f.seenPath = path
	_, err := os.Stat(path)
	f.seenExists = err == nil
	return f.result, f.err
}

func (f *fakeComparer) CompareTopK(_ context.Context, path string, k int) ([]domain.CandidateScore, error) {
	f.seenPath = path
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.ranked) {
		return f.ranked[:k], nil
	}
	return f.ranked, nil
}

func (f *fakeComparer) History(limit int) ([]domain.HistoryRecord, error) {
	f.seenLimit = limit
	return f.history, f.err
}

type fakeIndex struct {
	stats domain.IndexStats
	ready bool
}

func (f fakeIndex) Status() (domain.IndexStats, bool) {
	return f.stats, f.ready
}

func newTestRouter(t *testing.T, c *fakeComparer) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h := NewHandler(c, fakeIndex{
		stats: domain.IndexStats{Entries: 4, PerLabel: map[string]int{"a": 2, "b": 2}},
		ready: true,
	}, dir, 1, nil)
	return NewRouter(h, nil), dir
}

func uploadRequest(t *testing.T, target, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "praga.jpg")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleCompare(t *testing.T) {
	c := &fakeComparer{result: domain.ComparisonResult{Label: "Lagarta da juta", Category: "juta", Similarity: 91.3}}
	router, dir := newTestRouter(t, c)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/comparar", "image", []byte("jpeg bytes")))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"label":"Lagarta da juta","category":"juta","similarity":91.3}`, rr.Body.String())

	assert.True(t, c.seenExists, "upload should exist while comparing")
	_, err := os.Stat(c.seenPath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "upload should be removed")

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestHandleCompare_ErrorsAreInternal(t *testing.T) {
	for _, cause := range []error{
		domain.ErrEmptyIndex,
		fmt.Errorf("%w: bad jpeg", domain.ErrIO),
		fmt.Errorf("%w: no artifact", domain.ErrModelLoad),
		errors.New("anything"),
	} {
		t.Run(cause.Error(), func(t *testing.T) {
			c := &fakeComparer{err: cause}
			router, dir := newTestRouter(t, c)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, uploadRequest(t, "/comparar", "image", []byte("x")))

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.JSONEq(t, `{"error":"Erro interno"}`, rr.Body.String())

			left, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, left, "upload should be removed on failure")
		})
	}
}

func TestHandleCompare_MissingField(t *testing.T) {
	c := &fakeComparer{}
	router, _ := newTestRouter(t, c)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/comparar", "file", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, c.seenPath)
}

func TestHandleCompare_TooLarge(t *testing.T) {
	c := &fakeComparer{}
	router, _ := newTestRouter(t, c)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/comparar", "image", bytes.Repeat([]byte("x"), 2<<20)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, c.seenPath)
}

func TestHandleCompare_TopK(t *testing.T) {
	c := &fakeComparer{ranked: []domain.CandidateScore{
		{Label: "Besouro", Category: "juta", Distance: 0},
		{Label: "Gafanhoto", Category: "juta", Distance: 1},
		{Label: "Lagarta da juta", Category: "juta", Distance: 3},
	}}
	router, _ := newTestRouter(t, c)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/comparar?top_k=2", "image", []byte("x")))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Besouro", resp.Label)
	assert.Equal(t, 100.0, resp.Similarity)
	assert.Len(t, resp.Candidates, 2)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/comparar?top_k=abc", "image", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleCompare_MethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/comparar", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/comparar", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleHistory(t *testing.T) {
	c := &fakeComparer{history: []domain.HistoryRecord{
		{ID: "1", Label: "Besouro", Category: "juta", Similarity: 80, CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
	}}
	router, _ := newTestRouter(t, c)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/historico?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, c.seenLimit)

	var records []domain.HistoryRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Besouro", records[0].Label)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/historico", nil))
	assert.Equal(t, defaultHistoryLimit, c.seenLimit)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/historico?limit=0", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultHistoryLimit, c.seenLimit)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/historico?limit=100000", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, maxHistoryLimit, c.seenLimit)
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","index_ready":true,"entries":4,"labels":2}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pestmatch_http_requests_total")
}

func TestRequestIDPropagated(t *testing.T) {
	router, _ := newTestRouter(t, &fakeComparer{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}
