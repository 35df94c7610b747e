package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/assemble"
	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/match"
	"github.com/gurs-tools/kataster-cli/internal/monitoring"
	"github.com/gurs-tools/kataster-cli/internal/spatial"
)

// apiServer bundles the query paths behind the HTTP API.
type apiServer struct {
	matcher   *match.Matcher
	resolver  *spatial.Resolver
	assembler *assemble.Assembler
	store     cadastre.Store
	collector *monitoring.Collector
}

func (s *apiServer) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/locate", s.handleLocate)
		r.Get("/parcels/{id}", s.handleParcel)
	})

	return r
}

type requestIDKey struct{}

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *apiServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	var q cadastre.ListingQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := queryTimeout(r.Context())
	defer cancel()

	candidates, err := s.matcher.Match(ctx, q)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.assembler.FromMatches(candidates))
}

func (s *apiServer) handleLocate(w http.ResponseWriter, r *http.Request) {
	var q cadastre.PointQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := queryTimeout(r.Context())
	defer cancel()

	res, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.assembler.FromResolution(res))
}

func (s *apiServer) handleParcel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid parcel id")
		return
	}

	ctx, cancel := queryTimeout(r.Context())
	defer cancel()

	detail, err := s.store.GetParcelDetail(ctx, id)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap := s.collector.Collect(ctx)
	status := http.StatusOK
	if !snap.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

// writeQueryError maps the error taxonomy onto HTTP statuses. A timeout is
// an infrastructure failure, never an empty match result.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cadastre.ErrInvalidQuery):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, cadastre.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "parcel not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "query timed out")
	default:
		zap.L().Error("query failed",
			zap.String("path", r.URL.Path),
			zap.Any("request_id", r.Context().Value(requestIDKey{})),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
