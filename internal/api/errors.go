package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/soochol/datafiles/internal/codec"
	"github.com/soochol/datafiles/internal/datafile"
	"github.com/soochol/datafiles/internal/upload"
)

// errBadRequest marks malformed path or query input.
var errBadRequest = errors.New("bad request")

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, datafile.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrMissingDescriptor),
		errors.Is(err, codec.ErrMalformed),
		errors.Is(err, codec.ErrUnsupportedType),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Internal failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("data file request failed", "op", op, "err", err,
			"request_id", middleware.GetReqID(r.Context()))
		http.Error(w, "internal server error", status)
		return
	}
	slog.Debug("data file request rejected", "op", op, "status", status, "err", err)
	http.Error(w, err.Error(), status)
}
