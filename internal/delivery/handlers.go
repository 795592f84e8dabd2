// Package delivery exposes the service over HTTP.
package delivery

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tsawler/pagesweep"
	"github.com/tsawler/pagesweep/internal/service"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// Handler serves the clean and analyze endpoints.
type Handler struct {
	svc *service.Service
	log *zap.Logger
}

// NewHandler creates a handler over svc.
func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

type pageReport struct {
	Page     int    `json:"page"`
	Blank    bool   `json:"blank"`
	Evidence string `json:"evidence"`
}

type summary struct {
	JobID        string       `json:"job_id"`
	Filename     string       `json:"filename"`
	TotalPages   int          `json:"total_pages"`
	RemovedPages int          `json:"removed_pages"`
	KeptPages    int          `json:"kept_pages"`
	Removed      []int        `json:"removed"`
	Pages        []pageReport `json:"pages,omitempty"`
	Warnings     []string     `json:"warnings"`
}

type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	RequestID string   `json:"request_id,omitempty"`
	Summary   *summary `json:"summary,omitempty"`
}

// Clean handles POST /v1/clean: the multipart field "file" is cleaned and
// returned as a PDF attachment.
func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	filename, file, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := h.svc.Clean(r.Context(), filename, file)
	if err != nil {
		h.fail(w, r, err, job)
		return
	}

	res := job.Result
	hdr := w.Header()
	hdr.Set("Content-Type", "application/pdf")
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": job.OutputName}))
	hdr.Set("Content-Length", strconv.Itoa(len(res.Output)))
	hdr.Set("X-Pagesweep-Job-Id", job.ID)
	hdr.Set("X-Pagesweep-Total-Pages", strconv.Itoa(res.TotalPages))
	hdr.Set("X-Pagesweep-Removed-Pages", strconv.Itoa(res.RemovedPages))
	hdr.Set("X-Pagesweep-Kept-Pages", strconv.Itoa(res.KeptPages()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Output); err != nil {
		h.log.Warn("write response", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Analyze handles POST /v1/analyze and reports per-page verdicts as JSON.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	filename, file, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := h.svc.Analyze(r.Context(), filename, file)
	if err != nil {
		h.fail(w, r, err, job)
		return
	}
	writeJSON(w, http.StatusOK, newSummary(job, true))
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload opens the "file" part of a multipart request. On failure the error
// response has been written.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) (string, multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxInputSize()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(w, r, pagesweep.ErrInputTooLarge, nil)
			return "", nil, false
		}
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid multipart form: "+err.Error(), nil)
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required", nil)
		return "", nil, false
	}
	return header.Filename, file, true
}

// fail maps an error to its status and code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, job *service.Job) {
	status, code := classify(err)
	var sum *summary
	if job != nil && job.Result != nil {
		sum = newSummary(job, false)
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
	}
	writeError(w, r, status, code, err.Error(), sum)
}

func classify(err error) (int, string) {
	var parseErr *pagesweep.ParseError
	switch {
	case errors.Is(err, pagesweep.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, pagesweep.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, pagesweep.ErrEncrypted):
		return http.StatusUnprocessableEntity, "encrypted"
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, "invalid_pdf"
	case errors.Is(err, pagesweep.ErrNoPagesKept):
		return http.StatusUnprocessableEntity, "no_pages_kept"
	}
	return http.StatusInternalServerError, "internal"
}

func newSummary(job *service.Job, withPages bool) *summary {
	res := job.Result
	s := &summary{
		JobID:        job.ID,
		Filename:     job.Filename,
		TotalPages:   res.TotalPages,
		RemovedPages: res.RemovedPages,
		KeptPages:    res.KeptPages(),
		Removed:      res.Removed,
		Warnings:     make([]string, 0, len(res.Warnings)),
	}
	if s.Removed == nil {
		s.Removed = []int{}
	}
	for _, w := range res.Warnings {
		s.Warnings = append(s.Warnings, w.String())
	}
	if withPages {
		for _, v := range res.Verdicts {
			s.Pages = append(s.Pages, pageReport{Page: v.Page, Blank: v.Blank, Evidence: v.Evidence.String()})
		}
	}
	return s
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, sum *summary) {
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFrom(r.Context()),
		Summary:   sum,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
