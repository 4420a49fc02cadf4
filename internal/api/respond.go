package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/recommend"
	"github.com/sells-group/trailscout/internal/store"
	"github.com/sells-group/trailscout/internal/trails"
)

// Error codes returned in the error envelope.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
	CodeInternal    = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondErr maps a service error onto the envelope. Unknown errors are
// logged and reported as 500 without leaking their text.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *recommend.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, trails.ErrNotFound), errors.Is(err, store.ErrRunNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "resource not found")
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// queryParams reads typed query parameters, keeping the first parse error.
type queryParams struct {
	r   *http.Request
	err error
}

func (q *queryParams) int(name string, def int) int {
	s := q.r.URL.Query().Get(name)
	if s == "" || q.err != nil {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		q.err = &paramError{name: name}
		return def
	}
	return n
}

func (q *queryParams) float(name string, def float64) float64 {
	s := q.r.URL.Query().Get(name)
	if s == "" || q.err != nil {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		q.err = &paramError{name: name}
		return def
	}
	return f
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "invalid query parameter " + strconv.Quote(e.name)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
