package knowledgebase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/storage"
	"github.com/trycompai/comp-sub012/internal/vectorstore"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/repositories/mocks"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit/audittest"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
	presigned []storage.Disposition
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key, filename, contentType string, disposition storage.Disposition) (string, error) {
	f.presigned = append(f.presigned, disposition)
	return "https://s3.example.com/" + key + "?disposition=" + string(disposition), nil
}

type fakeVectors struct {
	upserted  map[uuid.UUID][]vectorstore.Chunk
	deleted   []uuid.UUID
	deleteErr error
}

func (f *fakeVectors) UpsertChunks(ctx context.Context, orgID, docID uuid.UUID, chunks []vectorstore.Chunk) error {
	if f.upserted == nil {
		f.upserted = make(map[uuid.UUID][]vectorstore.Chunk)
	}
	f.upserted[docID] = chunks
	return nil
}

func (f *fakeVectors) DeleteDocument(ctx context.Context, orgID, docID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeTrigger struct {
	triggered []interface{}
	err       error
}

func (f *fakeTrigger) Trigger(ctx context.Context, taskID string, payload interface{}, opts ...jobs.TriggerOption) (jobs.Handle, error) {
	if f.err != nil {
		return jobs.Handle{}, f.err
	}
	f.triggered = append(f.triggered, payload)
	return jobs.Handle{RunID: uuid.New(), TaskID: taskID}, nil
}

func (f *fakeTrigger) BatchTrigger(ctx context.Context, taskID string, payloads []interface{}) ([]jobs.Handle, error) {
	handles := make([]jobs.Handle, 0, len(payloads))
	for _, p := range payloads {
		h, err := f.Trigger(ctx, taskID, p)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

type fixture struct {
	svc      *Service
	repo     *mocks.MockKnowledgeBaseRepository
	store    *fakeStore
	vectors  *fakeVectors
	embedder *fakeEmbedder
	trigger  *fakeTrigger
	recorder *audittest.Recorder
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(mocks.MockKnowledgeBaseRepository),
		store:    newFakeStore(),
		vectors:  &fakeVectors{},
		embedder: &fakeEmbedder{},
		trigger:  &fakeTrigger{},
		recorder: &audittest.Recorder{},
	}
	f.svc = NewService(f.repo, f.store, f.vectors, f.embedder, f.trigger, f.recorder,
		Config{MaxUploadBytes: 1024, URLTTL: 5 * time.Minute, ChunkSize: 100, ChunkOverlap: 20}, zap.NewNop())
	return f
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestService_Upload(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()

	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *models.KnowledgeBaseDocument) bool {
		return d.OrganizationID == orgID &&
			d.ProcessingStatus == models.ProcessingPending &&
			d.FileType == "text/markdown" &&
			d.FileSize == 7 &&
			strings.HasPrefix(d.S3Key, orgID.String()+"/knowledge-base/"+d.ID.String()+"-")
	})).Return(nil)

	result, err := f.svc.Upload(context.Background(), orgID, UploadDocumentRequest{
		Name:        "../Security Handbook.md",
		ContentType: "text/markdown; charset=utf-8",
		FileData:    "data:text/markdown;base64," + encode("# Hello"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.RunID)

	doc := result.Document
	assert.True(t, strings.HasSuffix(doc.S3Key, "-Security_Handbook.md"), doc.S3Key)
	assert.Equal(t, []byte("# Hello"), f.store.objects[doc.S3Key])
	require.Len(t, f.trigger.triggered, 1)
	assert.Equal(t, processPayload{OrganizationID: orgID, DocumentID: doc.ID}, f.trigger.triggered[0])
	assert.Equal(t, []models.AuditAction{models.AuditActionUploaded}, f.recorder.Actions())
	f.repo.AssertExpectations(t)
}

func TestService_Upload_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  UploadDocumentRequest
	}{
		{"unsupported type", UploadDocumentRequest{Name: "a.exe", ContentType: "application/x-msdownload", FileData: encode("MZ")}},
		{"bad base64", UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: "!!!not base64!!!"}},
		{"too large", UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: encode(strings.Repeat("x", 1025))}},
		{"empty", UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Upload(context.Background(), uuid.New(), tt.req)
			assert.True(t, services.IsValidationError(err), "got %v", err)
			assert.Empty(t, f.store.objects)
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Upload_StorageFailure(t *testing.T) {
	f := newFixture()
	f.store.putErr = errors.New("SlowDown")

	_, err := f.svc.Upload(context.Background(), uuid.New(), UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: encode("x")})
	assert.ErrorIs(t, err, services.ErrStorageFailed)
	assert.True(t, services.IsExternalError(err))
}

func TestService_Upload_RowFailureRemovesObject(t *testing.T) {
	f := newFixture()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	_, err := f.svc.Upload(context.Background(), uuid.New(), UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: encode("x")})
	assert.True(t, services.IsInternalError(err))
	assert.Empty(t, f.store.objects)
	assert.Len(t, f.store.deleted, 1)
}

func TestService_Upload_TriggerFailureKeepsDocument(t *testing.T) {
	f := newFixture()
	f.trigger.err = errors.New("queue closed")
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.Upload(context.Background(), uuid.New(), UploadDocumentRequest{Name: "a.txt", ContentType: "text/plain", FileData: encode("x")})
	require.NoError(t, err)
	assert.Nil(t, result.RunID)
	assert.Equal(t, models.ProcessingPending, result.Document.ProcessingStatus)
}

func TestService_Delete(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.md", "", ObjectKey(orgID, uuid.New(), "a.md"), "text/markdown", 3)
	f.store.objects[doc.S3Key] = []byte("abc")

	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)
	f.repo.On("Delete", mock.Anything, orgID, doc.ID).Return(nil)

	result, err := f.svc.Delete(context.Background(), orgID, doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{doc.S3Key}, f.store.deleted)
	assert.Equal(t, []uuid.UUID{doc.ID}, f.vectors.deleted)
	assert.Equal(t, []models.AuditAction{models.AuditActionDeleted}, f.recorder.Actions())
}

func TestService_Delete_Missing(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, orgID, id).Return(nil, repositories.ErrNotFound)

	_, err := f.svc.Delete(context.Background(), orgID, id)
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)
	assert.Empty(t, f.store.deleted)
	assert.Empty(t, f.vectors.deleted)
}

func TestService_Delete_StorageFailureKeepsRow(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.md", "", "k", "text/markdown", 3)
	f.store.deleteErr = errors.New("AccessDenied")
	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)

	_, err := f.svc.Delete(context.Background(), orgID, doc.ID)
	assert.True(t, services.IsExternalError(err))
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Delete_VectorFailure(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.md", "", "k", "text/markdown", 3)
	f.vectors.deleteErr = errors.New("unavailable")
	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)

	_, err := f.svc.Delete(context.Background(), orgID, doc.ID)
	assert.ErrorIs(t, err, services.ErrVectorStoreFailed)
	assert.Empty(t, f.store.deleted)
}

func TestService_PresignedURLs(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	doc := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "policy.pdf", "", "k.pdf", "application/pdf", 3)
	f.repo.On("GetByID", mock.Anything, orgID, doc.ID).Return(doc, nil)

	download, err := f.svc.GetDownloadURL(context.Background(), orgID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, download.SignedURL, "attachment")
	assert.Equal(t, 300, download.ExpiresIn)

	view, err := f.svc.GetViewURL(context.Background(), orgID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, view.SignedURL, "inline")
	assert.Equal(t, "application/pdf", view.FileType)

	assert.Equal(t, []storage.Disposition{storage.DispositionAttachment, storage.DispositionInline}, f.store.presigned)
}

func TestService_GetDownloadURL_Missing(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, orgID, id).Return(nil, repositories.ErrNotFound)

	_, err := f.svc.GetDownloadURL(context.Background(), orgID, id)
	assert.True(t, services.IsNotFoundError(err))
}

func TestService_Process(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	a := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "a.md", "", "ka", "text/markdown", 1)
	b := models.NewKnowledgeBaseDocument(uuid.New(), orgID, "b.md", "", "kb", "text/markdown", 1)
	b.ProcessingStatus = models.ProcessingFailed

	f.repo.On("GetByID", mock.Anything, orgID, a.ID).Return(a, nil)
	f.repo.On("GetByID", mock.Anything, orgID, b.ID).Return(b, nil)
	f.repo.On("UpdateProcessing", mock.Anything, mock.Anything).Return(nil)

	handles, err := f.svc.Process(context.Background(), orgID, []uuid.UUID{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, a.ID, handles[0].DocumentID)
	assert.Equal(t, b.ID, handles[1].DocumentID)
	assert.Equal(t, models.ProcessingPending, b.ProcessingStatus)
	assert.Len(t, f.trigger.triggered, 2)
}

func TestService_Process_UnknownDocument(t *testing.T) {
	f := newFixture()
	orgID := uuid.New()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, orgID, id).Return(nil, repositories.ErrNotFound)

	_, err := f.svc.Process(context.Background(), orgID, []uuid.UUID{id})
	assert.ErrorIs(t, err, services.ErrDocumentNotFound)
	assert.Empty(t, f.trigger.triggered)
}
