package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.BadRequest("Request body is required")
		}
		return errors.BadRequest("Invalid request body: " + err.Error())
	}
	return nil
}

// parseID reads a positive int64 path parameter
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.BadRequest("Invalid " + name)
	}
	return id, nil
}

// configErr turns a config constructor error into a validation AppError
func configErr(err error) error {
	if fe, ok := rule.AsFieldError(err); ok {
		return errors.ValidationError("Validation failed", []validator.ValidationError{{
			Field: fe.Field, Tag: "invalid", Message: fe.Message,
		}})
	}
	return errors.ValidationError(err.Error(), nil)
}

// writeErr writes err and logs it when it is a server-side failure
func writeErr(w http.ResponseWriter, log *logger.Logger, err error, fallback string) {
	appErr := errors.AsAppError(err, fallback)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.ErrorWithErr(err, fallback)
	}
	utils.WriteError(w, appErr)
}
