package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps tree's logical/commanding failure classes onto HTTP
// status codes: not-found -> 404, invariant -> 400, anything else ->
// 500.
func writeError(w http.ResponseWriter, err error) {
	var notFound *tree.NotFoundError
	var invariant *tree.InvariantError
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &invariant):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
