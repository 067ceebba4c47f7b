package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks a knowledge base document through text extraction
// and vector indexing
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// KnowledgeBaseDocument is a file uploaded to object storage and indexed in
// the vector store
type KnowledgeBaseDocument struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OrganizationID   uuid.UUID        `json:"organization_id" db:"organization_id"`
	Name             string           `json:"name" db:"name"`
	Description      string           `json:"description" db:"description"`
	S3Key            string           `json:"s3_key" db:"s3_key"`
	FileType         string           `json:"file_type" db:"file_type"`
	FileSize         int64            `json:"file_size" db:"file_size"`
	ProcessingStatus ProcessingStatus `json:"processing_status" db:"processing_status"`
	ProcessingError  *string          `json:"processing_error,omitempty" db:"processing_error"`
	ChunkCount       int              `json:"chunk_count" db:"chunk_count"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the KnowledgeBaseDocument model
func (KnowledgeBaseDocument) TableName() string {
	return "knowledge_base_documents"
}

// NewKnowledgeBaseDocument creates a pending document. The id is supplied by
// the caller because it is part of the object key.
func NewKnowledgeBaseDocument(id, orgID uuid.UUID, name, description, s3Key, fileType string, fileSize int64) *KnowledgeBaseDocument {
	now := time.Now()
	return &KnowledgeBaseDocument{
		ID:               id,
		OrganizationID:   orgID,
		Name:             name,
		Description:      description,
		S3Key:            s3Key,
		FileType:         fileType,
		FileSize:         fileSize,
		ProcessingStatus: ProcessingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
