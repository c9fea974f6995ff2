package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pestmatch/internal/adapter/retriever"
	"pestmatch/internal/domain"
)

// Comparer is the comparison service as seen by the HTTP layer.
type Comparer interface {
	Compare(ctx context.Context, imagePath string) (domain.ComparisonResult, error)
	CompareTopK(ctx context.Context, imagePath string, k int) ([]domain.CandidateScore, error)
	History(limit int) ([]domain.HistoryRecord, error)
}

// IndexStatus reports whether the reference index is ready.
type IndexStatus interface {
	Status() (domain.IndexStats, bool)
}

const (
	uploadField         = "image"
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	maxTopK             = 50
)

type Handler struct {
	comparer  Comparer
	index     IndexStatus
	uploadDir string
	maxUpload int64
	logger    *zap.Logger
}

func NewHandler(comparer Comparer, index IndexStatus, uploadDir string, maxUploadMB int, logger *zap.Logger) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		comparer:  comparer,
		index:     index,
		uploadDir: uploadDir,
		maxUpload: int64(maxUploadMB) << 20,
		logger:    logger,
	}
}

// CompareResponse is the POST /comparar body. Candidates is only set when
// top_k was requested.
type CompareResponse struct {
	domain.ComparisonResult
	Candidates []domain.CandidateScore `json:"candidates,omitempty"`
}

// HandleCompare accepts a multipart upload in the "image" field, stores it
// in a temp file for the duration of the request and returns the best
// match.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", requestID(r.Context())))

	topK, err := parseIntParam(r, "top_k", 0, maxTopK)
	if err != nil {
		HandleError(w, err)
		return
	}

	path, err := h.saveUpload(w, r)
	if err != nil {
		logger.Warn("upload rejected", zap.Error(err))
		HandleError(w, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}()

	if topK > 0 {
		ranked, err := h.comparer.CompareTopK(r.Context(), path, topK)
		if err == nil && len(ranked) == 0 {
			err = domain.ErrEmptyIndex
		}
		if err != nil {
			logger.Error("comparison failed", zap.Error(err))
			HandleError(w, err)
			return
		}
		best := ranked[0]
		resp := CompareResponse{
			ComparisonResult: domain.ComparisonResult{
				Label:      best.Label,
				Category:   best.Category,
				Similarity: retriever.Similarity(best.Distance),
			},
			Candidates: ranked,
		}
		if err := JSONResponse(w, http.StatusOK, resp); err != nil {
			logger.Error("error sending response", zap.Error(err))
		}
		return
	}

	result, err := h.comparer.Compare(r.Context(), path)
	if err != nil {
		logger.Error("comparison failed", zap.Error(err))
		HandleError(w, err)
		return
	}

	logger.Info("comparison served",
		zap.String("label", result.Label),
		zap.Float64("similarity", result.Similarity),
	)
	if err := JSONResponse(w, http.StatusOK, result); err != nil {
		logger.Error("error sending response", zap.Error(err))
	}
}

// saveUpload copies the uploaded file into uploadDir and returns its path.
// The caller removes it.
func (h *Handler) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if isTooLarge(err) {
			return "", &HTTPError{Code: http.StatusRequestEntityTooLarge, Message: "Imagem muito grande"}
		}
		return "", &HTTPError{Code: http.StatusBadRequest, Message: fmt.Sprintf("Campo '%s' obrigatório", uploadField)}
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		if isTooLarge(err) {
			return "", &HTTPError{Code: http.StatusRequestEntityTooLarge, Message: "Imagem muito grande"}
		}
		return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return tmp.Name(), nil
}

// isTooLarge reports whether err came from the body size limit. The
// multipart reader does not always keep the *http.MaxBytesError in the chain.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		HandleError(w, err)
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	records, err := h.comparer.History(limit)
	if err != nil {
		h.logger.Error("failed to read history", zap.Error(err))
		HandleError(w, err)
		return
	}
	if err := JSONResponse(w, http.StatusOK, records); err != nil {
		h.logger.Error("error sending response", zap.Error(err))
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats, ready := h.index.Status()
	resp := map[string]any{
		"status":      "ok",
		"index_ready": ready,
	}
	if ready {
		resp["entries"] = stats.Entries
		resp["labels"] = len(stats.PerLabel)
	}
	if err := JSONResponse(w, http.StatusOK, resp); err != nil {
		h.logger.Error("error sending response", zap.Error(err))
	}
}

// parseIntParam reads an optional non-negative query parameter capped at
// limit.
func parseIntParam(r *http.Request, name string, def, limit int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &HTTPError{Code: http.StatusBadRequest, Message: fmt.Sprintf("Parâmetro '%s' inválido", name)}
	}
	if n > limit {
		n = limit
	}
	return n, nil
}
