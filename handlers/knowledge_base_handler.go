package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/knowledgebase"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// KnowledgeBaseService defines the document operations used by KnowledgeBaseHandler
type KnowledgeBaseService interface {
	ListDocuments(ctx context.Context, orgID uuid.UUID) ([]*models.KnowledgeBaseDocument, error)
	Upload(ctx context.Context, orgID uuid.UUID, req knowledgebase.UploadDocumentRequest) (*knowledgebase.UploadResult, error)
	Process(ctx context.Context, orgID uuid.UUID, docIDs []uuid.UUID) ([]knowledgebase.ProcessHandle, error)
	GetDownloadURL(ctx context.Context, orgID, docID uuid.UUID) (*knowledgebase.DocumentURL, error)
	GetViewURL(ctx context.Context, orgID, docID uuid.UUID) (*knowledgebase.DocumentURL, error)
	Delete(ctx context.Context, orgID, docID uuid.UUID) (*knowledgebase.DeleteResult, error)
}

// defaultMaxUploadBytes matches the knowledge base service default
const defaultMaxUploadBytes = 10 << 20

// KnowledgeBaseHandler handles knowledge base document HTTP requests
type KnowledgeBaseHandler struct {
	service         KnowledgeBaseService
	uploadBodyLimit int64
	logger          *zap.Logger
}

// NewKnowledgeBaseHandler creates a new KnowledgeBaseHandler
func NewKnowledgeBaseHandler(service KnowledgeBaseService, logger *zap.Logger) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{
		service:         service,
		uploadBodyLimit: utils.Base64BodyLimit(defaultMaxUploadBytes),
		logger:          logger,
	}
}

// WithMaxUploadBytes sizes the upload body limit for files of up to n bytes
func (h *KnowledgeBaseHandler) WithMaxUploadBytes(n int64) *KnowledgeBaseHandler {
	if n > 0 {
		h.uploadBodyLimit = utils.Base64BodyLimit(n)
	}
	return h
}

// HandleList handles GET /v1/knowledge-base/documents
func (h *KnowledgeBaseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, docs)
}

// HandleUpload handles POST /v1/knowledge-base/documents/upload
func (h *KnowledgeBaseHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req knowledgebase.UploadDocumentRequest
	if !decodeValidLimit(w, r, &req, h.uploadBodyLimit, h.logger) {
		return
	}

	result, err := h.service.Upload(r.Context(), orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("knowledge base document uploaded",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("document_id", result.Document.ID.String()),
		zap.Int64("file_size", result.Document.FileSize))
	_ = utils.WriteCreated(w, result)
}

// HandleProcess handles POST /v1/knowledge-base/documents/process
func (h *KnowledgeBaseHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req knowledgebase.ProcessDocumentsRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	handles, err := h.service.Process(r.Context(), orgID, req.DocumentIDs)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteAccepted(w, handles)
}

// HandleDownload handles GET /v1/knowledge-base/documents/{id}/download
func (h *KnowledgeBaseHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	h.writeURL(w, r, h.service.GetDownloadURL)
}

// HandleView handles GET /v1/knowledge-base/documents/{id}/view
func (h *KnowledgeBaseHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	h.writeURL(w, r, h.service.GetViewURL)
}

func (h *KnowledgeBaseHandler) writeURL(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, orgID, docID uuid.UUID) (*knowledgebase.DocumentURL, error)) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "id", "document")
	if !ok {
		return
	}

	url, err := get(r.Context(), orgID, docID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, url)
}

// HandleDelete handles DELETE /v1/knowledge-base/documents/{id}
func (h *KnowledgeBaseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "id", "document")
	if !ok {
		return
	}

	result, err := h.service.Delete(r.Context(), orgID, docID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("knowledge base document deleted",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("document_id", docID.String()))
	_ = utils.WriteOK(w, result)
}
