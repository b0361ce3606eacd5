package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/acorn-io/acorn-domains/pkg/version"
)

const maxRequestBytes = 1 << 16

type handler struct {
	backend backend.Backend
}

func newHandler(b backend.Backend) *handler {
	return &handler{
		backend: b,
	}
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, version.Get())
}

func (h *handler) createDomain(w http.ResponseWriter, r *http.Request) {
	var input model.CreateDomainRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	domain, err := h.backend.CreateDomain(r.Context(), input)
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, domain)
}

func (h *handler) getDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.backend.GetDomain(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DomainResponse{
		DomainConfiguration: d,
		Hostname:            d.Hostname(),
	})
}

func (h *handler) instructions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Instructions(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *handler) applyRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.backend.ApplyRecord(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, record)
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.backend.ListRecords(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, records)
}

func (h *handler) validate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Validate(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *handler) startVerification(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.StartVerification(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, resp)
}

func (h *handler) getVerification(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.VerificationStatus(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *handler) stopVerification(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.StopVerification(r.Context(), domainIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}
