package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/api/middleware"
	"github.com/accession-studio/engine/internal/api/types"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/logger"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

func writeErrorStr(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, appErr.New(appErr.CodeInvalid, msg))
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorStr(w, r, "invalid json")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeErrorStr(w, r, err.Error())
		return false
	}
	return true
}
