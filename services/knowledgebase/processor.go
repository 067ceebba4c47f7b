package knowledgebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/storage"
	"github.com/trycompai/comp-sub012/internal/textextract"
	"github.com/trycompai/comp-sub012/internal/vectorstore"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

// ProcessOutput is the job output of TaskProcessDocument
type ProcessOutput struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkCount int       `json:"chunk_count"`
}

// RegisterTasks adds the document processing task to the registry
func (s *Service) RegisterTasks(registry *jobs.Registry, maxAttempts int) error {
	return registry.Register(jobs.TaskDefinition{
		ID:          TaskProcessDocument,
		Queue:       Queue,
		MaxAttempts: maxAttempts,
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var payload processPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, jobs.Permanent(fmt.Errorf("invalid payload: %w", err))
			}
			out, err := s.ProcessDocument(ctx, payload.OrganizationID, payload.DocumentID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	})
}

// ProcessDocument downloads, extracts, chunks, embeds and indexes a
// document, recording the outcome on its row
func (s *Service) ProcessDocument(ctx context.Context, orgID, docID uuid.UUID) (*ProcessOutput, error) {
	doc, err := s.repo.GetByID(ctx, orgID, docID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// deleted while queued
			return nil, jobs.Permanent(fmt.Errorf("document %s not found", docID))
		}
		return nil, err
	}

	logger := s.logger.With(
		zap.String("organization_id", orgID.String()),
		zap.String("document_id", docID.String()))

	doc.ProcessingStatus = models.ProcessingProcessing
	doc.ProcessingError = nil
	doc.UpdatedAt = time.Now()
	if err := s.repo.UpdateProcessing(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	count, err := s.index(ctx, doc)
	if err != nil {
		logger.Warn("document processing failed", zap.Error(err))
		s.markFailed(ctx, doc, err)
		if errors.Is(err, textextract.ErrUnsupportedType) || errors.Is(err, storage.ErrObjectNotFound) {
			return nil, jobs.Permanent(err)
		}
		return nil, err
	}

	now := time.Now()
	doc.ProcessingStatus = models.ProcessingCompleted
	doc.ChunkCount = count
	doc.ProcessedAt = &now
	doc.UpdatedAt = now
	if err := s.repo.UpdateProcessing(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}

	logger.Info("document indexed", zap.Int("chunks", count))
	return &ProcessOutput{DocumentID: docID, ChunkCount: count}, nil
}

func (s *Service) index(ctx context.Context, doc *models.KnowledgeBaseDocument) (int, error) {
	if !textextract.Supported(doc.FileType) {
		return 0, fmt.Errorf("%w: %s", textextract.ErrUnsupportedType, doc.FileType)
	}

	body, err := s.store.Get(ctx, doc.S3Key)
	if err != nil {
		return 0, fmt.Errorf("failed to download document: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, s.config.MaxUploadBytes+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}

	text, err := textextract.Extract(doc.FileType, data)
	if err != nil {
		return 0, err
	}

	size, overlap := s.config.ChunkSize, s.config.ChunkOverlap
	if size == 0 {
		size, overlap = textextract.DefaultChunkSize, textextract.DefaultChunkOverlap
	}
	pieces := textextract.Chunk(text, size, overlap)

	// stale chunks from a previous run are replaced
	if err := s.vectors.DeleteDocument(ctx, doc.OrganizationID, doc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear previous chunks: %w", err)
	}
	if len(pieces) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = vectorstore.Chunk{Index: i, Content: piece, Vector: vectors[i]}
	}
	if err := s.vectors.UpsertChunks(ctx, doc.OrganizationID, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("failed to index chunks: %w", err)
	}
	return len(chunks), nil
}

func (s *Service) markFailed(ctx context.Context, doc *models.KnowledgeBaseDocument, cause error) {
	msg := cause.Error()
	doc.ProcessingStatus = models.ProcessingFailed
	doc.ProcessingError = &msg
	doc.ChunkCount = 0
	doc.UpdatedAt = time.Now()
	if err := s.repo.UpdateProcessing(ctx, doc); err != nil {
		s.logger.Error("failed to record processing failure",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
	}
}
