// Package knowledgebase stores uploaded documents in object storage and
// indexes their text in the vector store.
package knowledgebase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/storage"
	"github.com/trycompai/comp-sub012/internal/vectorstore"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

const (
	// TaskProcessDocument extracts, embeds and indexes one document
	TaskProcessDocument = "process-knowledge-base-document"

	// Queue runs document processing
	Queue = "knowledge-base"

	resourceType = "knowledge_base_document"
)

// AllowedContentTypes can be uploaded. Only text types can be indexed;
// others are stored and fail processing with a clear error.
var AllowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"text/plain":         true,
	"text/markdown":      true,
	"text/csv":           true,
	"application/json":   true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// ObjectStore is the object storage used for document bytes
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key, filename, contentType string, disposition storage.Disposition) (string, error)
}

// VectorIndex stores document chunks
type VectorIndex interface {
	UpsertChunks(ctx context.Context, orgID, docID uuid.UUID, chunks []vectorstore.Chunk) error
	DeleteDocument(ctx context.Context, orgID, docID uuid.UUID) error
}

// Embedder turns chunks into vectors
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Trigger enqueues background jobs
type Trigger interface {
	Trigger(ctx context.Context, taskID string, payload interface{}, opts ...jobs.TriggerOption) (jobs.Handle, error)
	BatchTrigger(ctx context.Context, taskID string, payloads []interface{}) ([]jobs.Handle, error)
}

// Config holds knowledge base limits
type Config struct {
	MaxUploadBytes int64
	URLTTL         time.Duration
	ChunkSize      int
	ChunkOverlap   int
}

// UploadDocumentRequest carries a base64 encoded file
type UploadDocumentRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	ContentType string `json:"contentType" validate:"required"`
	FileData    string `json:"fileData" validate:"required"`
}

// UploadResult is returned by Upload
type UploadResult struct {
	Document *models.KnowledgeBaseDocument `json:"document"`
	RunID    *uuid.UUID                    `json:"run_id,omitempty"`
}

// ProcessDocumentsRequest re-triggers processing for documents
type ProcessDocumentsRequest struct {
	DocumentIDs []uuid.UUID `json:"documentIds" validate:"required,min=1,max=100"`
}

// ProcessHandle links a document to its processing run
type ProcessHandle struct {
	DocumentID uuid.UUID `json:"document_id"`
	RunID      uuid.UUID `json:"run_id"`
}

// DocumentURL is a presigned link to a document
type DocumentURL struct {
	SignedURL string `json:"signed_url"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	ExpiresIn int    `json:"expires_in"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success bool `json:"success"`
}

// processPayload is the job payload of TaskProcessDocument
type processPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	DocumentID     uuid.UUID `json:"document_id"`
}

// Service handles knowledge base operations
type Service struct {
	repo     repositories.KnowledgeBaseRepository
	store    ObjectStore
	vectors  VectorIndex
	embedder Embedder
	trigger  Trigger
	audit    audit.Recorder
	config   Config
	logger   *zap.Logger
}

// NewService creates a new knowledge base service
func NewService(
	repo repositories.KnowledgeBaseRepository,
	store ObjectStore,
	vectors VectorIndex,
	embedder Embedder,
	trigger Trigger,
	recorder audit.Recorder,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.URLTTL <= 0 {
		config.URLTTL = 10 * time.Minute
	}
	return &Service{
		repo:     repo,
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		trigger:  trigger,
		audit:    recorder,
		config:   config,
		logger:   logger,
	}
}

// ObjectKey is the storage key of a document
func ObjectKey(orgID, docID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/knowledge-base/%s-%s", orgID, docID, utils.SanitizeFileName(name))
}

// OrganizationPrefix is the storage prefix holding an organization's files
func OrganizationPrefix(orgID uuid.UUID) string {
	return orgID.String() + "/"
}

// ListDocuments returns the organization's documents
func (s *Service) ListDocuments(ctx context.Context, orgID uuid.UUID) ([]*models.KnowledgeBaseDocument, error) {
	docs, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return docs, nil
}

// GetDocument returns one document of the organization
func (s *Service) GetDocument(ctx context.Context, orgID, docID uuid.UUID) (*models.KnowledgeBaseDocument, error) {
	doc, err := s.repo.GetByID(ctx, orgID, docID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrDocumentNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return doc, nil
}

// Upload validates and stores a document, then queues it for processing
func (s *Service) Upload(ctx context.Context, orgID uuid.UUID, req UploadDocumentRequest) (*UploadResult, error) {
	contentType := normalizeContentType(req.ContentType)
	if !AllowedContentTypes[contentType] {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrUnsupportedFileType.Message, nil).
			WithDetail("content_type", req.ContentType)
	}

	data, err := decodeFileData(req.FileData)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFileData, err)
	}
	if len(data) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "file is empty", nil)
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrFileTooLarge.Message, nil).
			WithDetail("max_bytes", s.config.MaxUploadBytes).
			WithDetail("size", len(data))
	}

	docID := uuid.New()
	key := ObjectKey(orgID, docID, req.Name)

	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.logger.Error("failed to upload document",
			zap.String("organization_id", orgID.String()),
			zap.String("s3_key", key),
			zap.Error(err))
		return nil, services.Wrap(services.ErrStorageFailed, err)
	}

	doc := models.NewKnowledgeBaseDocument(docID, orgID, req.Name, req.Description, key, contentType, int64(len(data)))
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("s3_key", key), zap.Error(delErr))
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("knowledge base document uploaded",
		zap.String("organization_id", orgID.String()),
		zap.String("document_id", docID.String()),
		zap.Int("size", len(data)))
	s.audit.Record(ctx, orgID, models.AuditActionUploaded, resourceType, docID, map[string]interface{}{
		"name":      doc.Name,
		"file_type": contentType,
		"file_size": doc.FileSize,
	})

	result := &UploadResult{Document: doc}
	handle, err := s.trigger.Trigger(ctx, TaskProcessDocument, processPayload{OrganizationID: orgID, DocumentID: docID})
	if err != nil {
		// the document stays pending and can be reprocessed
		s.logger.Error("failed to trigger document processing",
			zap.String("document_id", docID.String()),
			zap.Error(err))
		return result, nil
	}
	result.RunID = &handle.RunID
	return result, nil
}

// Process resets the documents to pending and triggers processing for each
func (s *Service) Process(ctx context.Context, orgID uuid.UUID, docIDs []uuid.UUID) ([]ProcessHandle, error) {
	docs := make([]*models.KnowledgeBaseDocument, 0, len(docIDs))
	seen := make(map[uuid.UUID]bool, len(docIDs))
	for _, id := range docIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		doc, err := s.GetDocument(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	payloads := make([]interface{}, len(docs))
	for i, doc := range docs {
		doc.ProcessingStatus = models.ProcessingPending
		doc.ProcessingError = nil
		doc.UpdatedAt = time.Now()
		if err := s.repo.UpdateProcessing(ctx, doc); err != nil {
			return nil, services.Wrap(services.ErrDatabaseError, err)
		}
		payloads[i] = processPayload{OrganizationID: orgID, DocumentID: doc.ID}
	}

	handles, err := s.trigger.BatchTrigger(ctx, TaskProcessDocument, payloads)
	if err != nil {
		return nil, services.WrapInternal("failed to trigger document processing", err)
	}

	out := make([]ProcessHandle, len(handles))
	for i, h := range handles {
		out[i] = ProcessHandle{DocumentID: docs[i].ID, RunID: h.RunID}
	}
	return out, nil
}

// GetDownloadURL returns a presigned URL that downloads the document
func (s *Service) GetDownloadURL(ctx context.Context, orgID, docID uuid.UUID) (*DocumentURL, error) {
	return s.presign(ctx, orgID, docID, storage.DispositionAttachment)
}

// GetViewURL returns a presigned URL that renders the document in the browser
func (s *Service) GetViewURL(ctx context.Context, orgID, docID uuid.UUID) (*DocumentURL, error) {
	return s.presign(ctx, orgID, docID, storage.DispositionInline)
}

func (s *Service) presign(ctx context.Context, orgID, docID uuid.UUID, disposition storage.Disposition) (*DocumentURL, error) {
	doc, err := s.GetDocument(ctx, orgID, docID)
	if err != nil {
		return nil, err
	}

	signed, err := s.store.PresignGet(ctx, doc.S3Key, doc.Name, doc.FileType, disposition)
	if err != nil {
		s.logger.Error("failed to presign document",
			zap.String("document_id", docID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrStorageFailed, err)
	}

	return &DocumentURL{
		SignedURL: signed,
		FileName:  doc.Name,
		FileType:  doc.FileType,
		ExpiresIn: int(s.config.URLTTL.Seconds()),
	}, nil
}

// Delete removes the document's vectors, its object and its row, in that order
func (s *Service) Delete(ctx context.Context, orgID, docID uuid.UUID) (*DeleteResult, error) {
	doc, err := s.GetDocument(ctx, orgID, docID)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.DeleteDocument(ctx, orgID, docID); err != nil {
		s.logger.Error("failed to delete document vectors",
			zap.String("document_id", docID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrVectorStoreFailed, err)
	}

	if err := s.store.Delete(ctx, doc.S3Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Error("failed to delete document object",
			zap.String("document_id", docID.String()),
			zap.String("s3_key", doc.S3Key),
			zap.Error(err))
		return nil, services.Wrap(services.ErrStorageFailed, err)
	}

	if err := s.repo.Delete(ctx, orgID, docID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrDocumentNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("knowledge base document deleted",
		zap.String("organization_id", orgID.String()),
		zap.String("document_id", docID.String()))
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, docID, map[string]string{"name": doc.Name})

	return &DeleteResult{Success: true}, nil
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// decodeFileData accepts raw base64 or a data URL
func decodeFileData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 {
			return nil, errors.New("malformed data URL")
		}
		data = data[i+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// browsers sometimes strip padding
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	return decoded, err
}
