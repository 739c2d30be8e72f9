// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/sirupsen/logrus"
)

// AccountHeader carries the caller's account id.
const AccountHeader = "X-Account-ID"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the status of the error's code. Errors without a
// code are logged and hidden behind a generic 500.
func writeError(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    apperrors.CodeUnknown,
			Message: "internal error",
		})
		return
	}
	writeJSON(w, appErr.Code.HTTPStatus(), errorBody{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
	})
}

func invalid(message string) error {
	return apperrors.New(apperrors.CodeInvalidArgument, message)
}

func accountFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(AccountHeader)
	if raw == "" {
		return uuid.Nil, invalid("missing " + AccountHeader + " header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid("invalid " + AccountHeader + " header")
	}
	return id, nil
}

func parseID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid "+name,
			map[string]string{name: raw})
	}
	return id, nil
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "bad request payload", err)
	}
	return nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, invalid("invalid " + name + " timestamp")
	}
	return ts, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid("invalid " + name)
	}
	return n, nil
}
