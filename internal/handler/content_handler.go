package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Generated content — POST /v1/content/*
// ============================================================

func contentDescriptionHandler(content *service.ContentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/content/description")
		defer span.End()

		var req domain.ContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		text, err := content.Description(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"description": text})
	}
}

func contentListingHandler(content *service.ContentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/content/listing")
		defer span.End()

		var req domain.ContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		listing, err := content.Listing(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}

func contentListingsHandler(content *service.ContentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/content/listings")
		defer span.End()

		var body struct {
			Requests []domain.ContentRequest `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(body.Requests) == 0 {
			writeError(w, http.StatusBadRequest, "requests must not be empty")
			return
		}
		if len(body.Requests) > 25 {
			writeError(w, http.StatusBadRequest, "at most 25 requests per batch")
			return
		}

		listings, err := content.Listings(ctx, body.Requests)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
	}
}
