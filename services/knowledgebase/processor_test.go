package knowledgebase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
)

// recordStatuses captures every status persisted through UpdateProcessing
func recordStatuses(f *fixture) *[]models.ProcessingStatus {
	seen := &[]models.ProcessingStatus{}
	f.repo.On("UpdateProcessing", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			*seen = append(*seen, args.Get(1).(*models.KnowledgeBaseDocument).ProcessingStatus)
		}).
		Return(nil)
	return seen
}

func TestProcessDocument_Success(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "notes.md", "", "k.md", "text/markdown", 0)
	f.store.objects["k.md"] = []byte("# Access control\n\n" + strings.Repeat("Employees use SSO for every system. ", 10))

	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	seen := recordStatuses(f)

	out, err := f.svc.ProcessDocument(context.Background(), orgID, doc.ID)
	require.NoError(t, err)
	assert.Greater(t, out.ChunkCount, 1)
	assert.Equal(t, []models.ProcessingStatus{models.ProcessingProcessing, models.ProcessingCompleted}, *seen)
	assert.Equal(t, out.ChunkCount, doc.ChunkCount)
	assert.NotNil(t, doc.ProcessedAt)

	chunks := f.vectors.upserted[doc.ID]
	require.Len(t, chunks, out.ChunkCount)
	assert.Equal(t, 0, chunks[0].Index)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Access control"))
	// previous chunks are cleared before indexing
	assert.Equal(t, []uuid.UUID{doc.ID}, f.vectors.deleted)
}

func TestProcessDocument_UnsupportedTypeIsPermanent(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "scan.pdf", "", "k.pdf", "application/pdf", 10)

	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	seen := recordStatuses(f)

	_, err := f.svc.ProcessDocument(context.Background(), orgID, doc.ID)
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))
	assert.Equal(t, []models.ProcessingStatus{models.ProcessingProcessing, models.ProcessingFailed}, *seen)
	require.NotNil(t, doc.ProcessingError)
	assert.Contains(t, *doc.ProcessingError, "application/pdf")
}

func TestProcessDocument_EmbedFailureIsRetryable(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.txt", "", "k.txt", "text/plain", 5)
	f.store.objects["k.txt"] = []byte("hello")
	f.embedder.err = errors.New("rate limited")

	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	seen := recordStatuses(f)

	_, err := f.svc.ProcessDocument(context.Background(), orgID, doc.ID)
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))
	assert.Equal(t, models.ProcessingFailed, (*seen)[len(*seen)-1])
	assert.Empty(t, f.vectors.upserted)
}

func TestProcessDocument_MissingObjectIsPermanent(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.txt", "", "gone.txt", "text/plain", 5)

	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	recordStatuses(f)

	_, err := f.svc.ProcessDocument(context.Background(), orgID, doc.ID)
	assert.True(t, jobs.IsPermanent(err))
	assert.Equal(t, models.ProcessingFailed, doc.ProcessingStatus)
}

func TestProcessDocument_DeletedWhileQueued(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, orgID, id).Return(nil, repositories.ErrNotFound)

	_, err := f.svc.ProcessDocument(context.Background(), orgID, id)
	assert.True(t, jobs.IsPermanent(err))
	f.repo.AssertNotCalled(t, "UpdateProcessing", mock.Anything, mock.Anything)
}

func TestRegisterTasks_HandlerDecodesPayload(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.txt", "", "k.txt", "text/plain", 5)
	f.store.objects["k.txt"] = []byte("hello world")
	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	recordStatuses(f)

	registry := jobs.NewRegistry()
	require.NoError(t, f.svc.RegisterTasks(registry, 3))

	def, ok := registry.Get(TaskProcessDocument)
	require.True(t, ok)
	assert.Equal(t, Queue, def.Queue)

	raw, _ := json.Marshal(processPayload{OrganizationID: orgID, DocumentID: doc.ID})
	out, err := def.Handler(context.Background(), raw)
	require.NoError(t, err)

	var result ProcessOutput
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, 1, result.ChunkCount)

	_, err = def.Handler(context.Background(), json.RawMessage(`{`))
	assert.True(t, jobs.IsPermanent(err))
}
