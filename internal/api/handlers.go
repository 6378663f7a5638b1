package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/orchestrator"
	"github.com/kingabzpro/ECom-Intel/internal/review"
	"github.com/kingabzpro/ECom-Intel/internal/runs"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
	sampleReviewCount   = 5
)

type analysisRequest struct {
	ProductURL   string `json:"product_url"`
	MaxPages     int    `json:"max_pages"`
	ForceRefresh bool   `json:"force_refresh"`
}

// startAnalysis handles POST /v1/analyses. It validates the product URL,
// clamps max_pages to the configured ceiling, and returns 202 with the run ID
// once the background run is registered.
func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProductURL == "" {
		writeError(w, http.StatusBadRequest, "product_url required")
		return
	}
	if _, err := review.NormalizeProductURL(req.ProductURL); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product_url")
		return
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.Scraper.MaxPagesDefault
	}
	if maxPages > s.cfg.Scraper.MaxPagesLimit {
		maxPages = s.cfg.Scraper.MaxPagesLimit
	}

	run, err := s.pipeline.Start(r.Context(), orchestrator.Request{
		ProductURL:   req.ProductURL,
		MaxPages:     maxPages,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		s.logger.Error("start analysis failed",
			zap.String("product_url", req.ProductURL),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID.String(),
		"state":  string(run.State),
	})
}

// getRun handles GET /v1/runs/{run_id}, returning the run's lifecycle state
// and progress counters.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.tracker.Get(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// getRunResult handles GET /v1/runs/{run_id}/result. Until the run reaches a
// terminal state it answers 409 so pollers keep waiting; failed runs answer
// with the status mapped from the failure kind.
func (s *Server) getRunResult(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.tracker.Get(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if !run.State.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "run not finished",
			"state": run.State,
		})
		return
	}
	if run.State == runs.StateFailed {
		writeJSON(w, statusForKind(run.ErrKind), map[string]any{
			"error": run.ErrMessage,
			"kind":  run.ErrKind,
		})
		return
	}

	product, err := s.store.GetProduct(r.Context(), run.ProductURL)
	if err != nil {
		s.logger.Error("load product for run result failed",
			zap.String("run_id", runID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	samples, err := s.store.GetReviews(r.Context(), product.ID)
	if err != nil {
		s.logger.Error("load reviews for run result failed",
			zap.String("run_id", runID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load reviews")
		return
	}
	if len(samples) > sampleReviewCount {
		samples = samples[:sampleReviewCount]
	}

	result := run.Result
	if result == nil {
		// Completed before this process restarted; fall back to the store.
		latest, lerr := s.store.LatestAnalysis(r.Context(), product.ID)
		if lerr != nil {
			writeError(w, http.StatusInternalServerError, "failed to load analysis")
			return
		}
		result = &latest
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":         run.ID.String(),
		"product":        product,
		"from_cache":     run.FromCache,
		"analysis":       result,
		"sample_reviews": samples,
	})
}

// listProducts handles GET /v1/products?limit=, returning recently analyzed
// products newest first.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultProductLimit, maxProductLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	products, err := s.store.RecentProducts(r.Context(), limit)
	if err != nil {
		s.logger.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// listProductReviews handles GET /v1/products/{product_id}/reviews.
func (s *Server) listProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reviews, err := s.store.GetReviews(r.Context(), productID)
	if err != nil {
		s.logger.Error("list reviews failed",
			zap.Int64("product_id", productID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// getProductAnalysis handles GET /v1/products/{product_id}/analysis, serving
// the latest cached analysis without triggering a new run.
func (s *Server) getProductAnalysis(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := s.store.LatestAnalysis(r.Context(), productID)
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no analysis for product")
			return
		}
		s.logger.Error("get analysis failed",
			zap.Int64("product_id", productID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run id")
	}
	return id, nil
}

func parseProductID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "product_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid product id")
	}
	return id, nil
}

func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
