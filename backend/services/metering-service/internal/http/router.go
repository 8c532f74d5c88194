package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"submeter/backend/services/metering-service/internal/http/handlers"
	"submeter/backend/services/metering-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Meters        *handlers.MetersHandlers
	Events        http.HandlerFunc
	HealthHandler http.HandlerFunc
}

// NewRouter wires HTTP routes. adminMiddleware guards the operator endpoints.
func NewRouter(deps RouterDeps, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	admin := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, adminMiddleware)
	}

	m := deps.Meters
	mux.Handle("/meters", methods(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(m.List),
		http.MethodPost: admin(m.Create),
	}))
	mux.Handle("/meters/reset-all", method(http.MethodPost, admin(m.ResetAll)))
	mux.Handle("/meters/{id}", method(http.MethodGet, http.HandlerFunc(m.Get)))
	mux.Handle("/meters/{id}/history", method(http.MethodGet, http.HandlerFunc(m.History)))
	mux.Handle("/meters/{id}/consume", method(http.MethodPost, http.HandlerFunc(m.Consume)))
	mux.Handle("/meters/{id}/topup", method(http.MethodPost, http.HandlerFunc(m.TopUp)))
	mux.Handle("/meters/{id}/settle", method(http.MethodPost, http.HandlerFunc(m.Settle)))
	mux.Handle("/meters/{id}/activate", method(http.MethodPost, admin(m.Activate)))
	mux.Handle("/meters/{id}/deactivate", method(http.MethodPost, admin(m.Deactivate)))
	mux.Handle("/meters/{id}/reset", method(http.MethodPost, admin(m.Reset)))
	mux.Handle("/meters/{id}/strategy", method(http.MethodPost, admin(m.Strategy)))
	mux.Handle("/meters/{id}/remove", method(http.MethodPost, admin(m.Remove)))

	mux.Handle("/consumption/total", method(http.MethodGet, http.HandlerFunc(m.Total)))

	if deps.Events != nil {
		mux.Handle("/events/ws", method(http.MethodGet, deps.Events))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	names := make([]string, 0, len(byMethod))
	for m := range byMethod {
		names = append(names, m)
	}
	sort.Strings(names)
	allowed := strings.Join(names, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allowed)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
