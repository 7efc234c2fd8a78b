// Package handler serves the HTTP API over the settlement services. Handlers
// declare the service surface they need as local interfaces so the package
// never depends on concrete service types.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/extralife/marketd/internal/domain"
)

// writeJSON marshals v and writes it with the given status. A marshal
// failure falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error onto an HTTP status using the error
// taxonomy and includes the machine-readable kind in the body.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	case domain.KindStateConflict:
		status = http.StatusConflict
	case domain.KindNotYetEligible:
		status = http.StatusUnprocessableEntity
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindExternal:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}

// poolRef extracts the {chain} and {id} path parameters.
func poolRef(r *http.Request) (string, uint64, error) {
	chain := r.PathValue("chain")
	if chain == "" {
		return "", 0, errors.New("missing chain")
	}
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return "", 0, errors.New("invalid pool id")
	}
	return chain, id, nil
}

// validAddress reports whether addr looks like a lowercased hex address.
func validAddress(addr string) bool {
	return strings.HasPrefix(addr, "0x") && len(addr) == 42
}

// addressParam extracts and normalises an address path parameter.
func addressParam(r *http.Request, name string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(r.PathValue(name)))
	if !validAddress(addr) {
		return "", errors.New("invalid address")
	}
	return addr, nil
}

// logHandler attaches the handler name for slog output.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
