package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"oneinbox/internal/usecase"
)

// maxBodyBytes bounds request bodies read by the router.
const maxBodyBytes = 64 << 10

// NewRouter serves the same routes as Handle over net/http.
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlation)

	r.Get("/healthz", h.serve(func(req *http.Request) result { return h.health() }))
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.serve(func(req *http.Request) result {
			return h.messages(req.Context())
		}))
		r.Get("/generate", h.serve(func(req *http.Request) result {
			return h.generate(req.Context(), req.URL.Query().Get("platform"), correlationID(req))
		}))
		r.Post("/send", h.serve(func(req *http.Request) result {
			body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
			if err != nil {
				return result{status: http.StatusBadRequest, body: errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "unreadable_body"}}
			}
			return h.send(req.Context(), body, correlationID(req))
		}))
		r.Post("/clear", h.serve(func(req *http.Request) result {
			return h.clear(req.Context())
		}))
	})
	return r
}

func (h *Handler) serve(fn func(*http.Request) result) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		res := fn(req)
		writeJSON(w, res.status, res.body)
	}
}

// correlation echoes the caller's correlation id or assigns a new one.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(req.Header.Get(correlationHeader))
		if id == "" {
			id = newUUID()
			req.Header.Set(correlationHeader, id)
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, req)
	})
}

func correlationID(req *http.Request) string {
	return req.Header.Get(correlationHeader)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
