package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"go.uber.org/zap"
)

const documentColumns = `id, organization_id, name, description, s3_key, file_type, file_size,
	processing_status, processing_error, chunk_count, processed_at, created_at, updated_at`

// KnowledgeBaseRepository implements the repositories.KnowledgeBaseRepository interface
type KnowledgeBaseRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewKnowledgeBaseRepository creates a new knowledge base document repository
func NewKnowledgeBaseRepository(db *DB, logger *zap.Logger) repositories.KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db, logger: logger}
}

// Create creates a document row
func (r *KnowledgeBaseRepository) Create(ctx context.Context, doc *models.KnowledgeBaseDocument) error {
	query := `
		INSERT INTO knowledge_base_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		doc.ID, doc.OrganizationID, doc.Name, doc.Description, doc.S3Key, doc.FileType, doc.FileSize,
		doc.ProcessingStatus, doc.ProcessingError, doc.ChunkCount, doc.ProcessedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "create knowledge base document")
	}
	return nil
}

// GetByID retrieves a document of the organization
func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.KnowledgeBaseDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_base_documents WHERE organization_id = $1 AND id = $2`
	return r.scan(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, id))
}

// ListByOrg retrieves all documents, newest first
func (r *KnowledgeBaseRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.KnowledgeBaseDocument, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM knowledge_base_documents
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.KnowledgeBaseDocument{}
	for rows.Next() {
		doc, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge base document rows: %w", err)
	}
	return docs, nil
}

// UpdateProcessing persists processing status, error, chunk count and processed_at
func (r *KnowledgeBaseRepository) UpdateProcessing(ctx context.Context, doc *models.KnowledgeBaseDocument) error {
	query := `
		UPDATE knowledge_base_documents
		SET processing_status = $3, processing_error = $4, chunk_count = $5, processed_at = $6, updated_at = $7
		WHERE organization_id = $1 AND id = $2
	`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		doc.OrganizationID, doc.ID, doc.ProcessingStatus, doc.ProcessingError,
		doc.ChunkCount, doc.ProcessedAt, doc.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "update knowledge base document")
	}
	return expectOneRow(res, "update knowledge base document")
}

// Delete deletes a document row
func (r *KnowledgeBaseRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM knowledge_base_documents WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return translateError(err, "delete knowledge base document")
	}
	return expectOneRow(res, "delete knowledge base document")
}

func (r *KnowledgeBaseRepository) scan(row rowScanner) (*models.KnowledgeBaseDocument, error) {
	doc := &models.KnowledgeBaseDocument{}
	err := row.Scan(
		&doc.ID, &doc.OrganizationID, &doc.Name, &doc.Description, &doc.S3Key, &doc.FileType, &doc.FileSize,
		&doc.ProcessingStatus, &doc.ProcessingError, &doc.ChunkCount, &doc.ProcessedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "scan knowledge base document")
	}
	return doc, nil
}
