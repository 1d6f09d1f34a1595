package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"doccloud/internal/document/model"
	"doccloud/internal/document/service"
	"doccloud/pkg/logger"
)

// MaxNameLength bounds a document name.
const MaxNameLength = 256

// maxBodyBytes bounds an upload request.
const maxBodyBytes = 10 << 20

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string, err error) {
	resp := model.ErrorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, code, resp)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return false
	}
	return true
}

func validateSaveRequest(req *model.SaveDocRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&req.Text, validation.NotNil),
	)
}

func (h *DocumentHandler) Hello(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	w.Write([]byte("Hello World!"))
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req model.SaveDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request, body must be a JSON object with name and text", err)
		return
	}
	if err := validateSaveRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request, name and text are required", err)
		return
	}

	res, err := h.Service.Commit(r.Context(), *req.Name, *req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, saveResponse(res, ""))
	case errors.Is(err, model.ErrPersistenceFailed):
		// The version is committed in memory; report success and warn.
		writeJSON(w, http.StatusOK, saveResponse(res, err.Error()))
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad request, name and text are required", err)
	case errors.Is(err, model.ErrUploadFailed):
		logger.Sugar.Errorf("Handler: Failed to upload %q: %v", *req.Name, err)
		writeError(w, http.StatusBadGateway, "failed to upload", err)
	default:
		logger.Sugar.Errorf("Handler: Failed to commit %q: %v", *req.Name, err)
		writeError(w, http.StatusInternalServerError, "failed to save document", err)
	}
}

func saveResponse(res model.CommitResult, warning string) model.SaveDocResponse {
	message := "successfully uploaded"
	if !res.Appended {
		message = "no changes since the last version"
	}
	return model.SaveDocResponse{
		Message:       message,
		CID:           res.ContentAddress,
		Appended:      res.Appended,
		VersionNumber: res.VersionNumber,
		GatewayURL:    res.GatewayURL,
		Warning:       warning,
	}
}

// GetDocuments returns every history in the snapshot format.
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	all := h.Service.ListAll()
	out := make(model.Snapshot, len(all))
	for name, hist := range all {
		out[name] = hist.Versions
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name parameter", nil)
		return
	}

	hist, err := h.Service.GetHistory(name)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to read history of %q: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to read history", err)
		return
	}
	writeJSON(w, http.StatusOK, service.HistoryResponse(hist))
}

func (h *DocumentHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.Service.Summaries())
}
