// Package vectorstore indexes knowledge base chunks in Qdrant.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

// SourceKnowledgeBase tags points created from knowledge base documents
const SourceKnowledgeBase = "knowledge_base"

// Chunk is one embedded slice of a document
type Chunk struct {
	Index   int
	Content string
	Vector  []float32
}

// Store writes and deletes document chunks in one collection
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// New connects to Qdrant over gRPC
func New(cfg config.VectorStoreConfig, logger *zap.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection and its payload indexes if missing
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	for _, field := range []string{"organization_id", "document_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", field, err)
		}
	}

	s.logger.Info("created vector collection",
		zap.String("collection", s.collection),
		zap.Uint64("dimensions", s.dimensions))
	return nil
}

// UpsertChunks writes the chunks of one document. Point ids are derived
// from the document id and chunk index, so reprocessing overwrites.
func (s *Store) UpsertChunks(ctx context.Context, orgID, docID uuid.UUID, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		if uint64(len(chunk.Vector)) != s.dimensions {
			return fmt.Errorf("chunk %d has %d dimensions, collection expects %d", chunk.Index, len(chunk.Vector), s.dimensions)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(docID, chunk.Index).String()),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(Payload(orgID, docID, chunk)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(points), err)
	}
	return nil
}

// DeleteDocument removes every point of one document
func (s *Store) DeleteDocument(ctx context.Context, orgID, docID uuid.UUID) error {
	return s.deleteWhere(ctx, DocumentFilter(orgID, docID))
}

// DeleteOrganization removes every point of an organization
func (s *Store) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	return s.deleteWhere(ctx, OrganizationFilter(orgID))
}

func (s *Store) deleteWhere(ctx context.Context, filter *qdrant.Filter) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Close releases the gRPC connection
func (s *Store) Close() error {
	return s.client.Close()
}

// PointID is the deterministic id of a document chunk
func PointID(docID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(strconv.Itoa(index)))
}

// Payload is the metadata stored with each chunk
func Payload(orgID, docID uuid.UUID, chunk Chunk) map[string]any {
	return map[string]any{
		"organization_id": orgID.String(),
		"document_id":     docID.String(),
		"chunk_index":     chunk.Index,
		"content":         chunk.Content,
		"source":          SourceKnowledgeBase,
	}
}

// DocumentFilter matches the points of one document, scoped to its organization
func DocumentFilter(orgID, docID uuid.UUID) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("organization_id", orgID.String()),
			qdrant.NewMatch("document_id", docID.String()),
		},
	}
}

// OrganizationFilter matches every point of an organization
func OrganizationFilter(orgID uuid.UUID) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("organization_id", orgID.String()),
		},
	}
}
