package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/acorn-io/acorn-domains/pkg/db"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/sirupsen/logrus"
)

func writeError(w http.ResponseWriter, httpStatus int, err error) {
	writeErrorData(w, httpStatus, err, nil)
}

func writeErrorData(w http.ResponseWriter, httpStatus int, err error, data interface{}) {
	if httpStatus >= http.StatusInternalServerError {
		logrus.Errorf("got a response error: %v", err)
	} else {
		logrus.Debugf("got a response error: %v", err)
	}
	o := model.ErrorResponse{
		Status:  httpStatus,
		Message: err.Error(),
		Data:    data,
	}
	res, _ := json.Marshal(o)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(res)
}

// handleError maps backend errors onto HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var invalid *backend.InvalidDomainError
	switch {
	case errors.As(err, &invalid):
		writeErrorData(w, http.StatusUnprocessableEntity, err, invalid.Errors)
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, db.ErrDomainExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, backend.ErrPublisherDisabled):
		writeError(w, http.StatusNotImplemented, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeSuccess(w http.ResponseWriter, httpStatus int, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(res)
}
