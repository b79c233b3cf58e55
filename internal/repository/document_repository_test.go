package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studyhub/internal/model"
	"studyhub/internal/repository/repotest"
)

func seedDocument(t *testing.T, db *gorm.DB, userID uint, status model.DocumentStatus, name string) *model.Document {
	t.Helper()
	doc := &model.Document{
		UserID:           userID,
		OriginalName:     name,
		StoredPath:       "uploads/" + name,
		MIMEType:         "text/plain",
		FileSize:         42,
		ProcessingStatus: status,
	}
	require.NoError(t, NewDocumentRepository(db).Create(context.Background(), doc))
	return doc
}

func seedChunk(t *testing.T, db *gorm.DB, docID uint, idx int, content string, vec []float32) *model.Chunk {
	t.Helper()
	repo := NewChunkRepository(db)
	chunk := &model.Chunk{DocumentID: docID, ChunkIndex: idx, Content: content}
	require.NoError(t, repo.Create(context.Background(), chunk))
	if vec != nil {
		emb := &model.Embedding{ChunkID: chunk.ID, Model: "test"}
		emb.SetValues(vec)
		require.NoError(t, repo.CreateEmbedding(context.Background(), emb))
	}
	return chunk
}

func TestDocumentRepository_Ownership(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, model.DocumentPending, "bio.txt")

	got, err := repo.GetByIDAndUserID(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bio.txt", got.OriginalName)

	other, err := repo.GetByIDAndUserID(ctx, doc.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, other)

	list, err := repo.ListByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDocumentRepository_TransitionStatusIsGuarded(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()
	doc := seedDocument(t, db, 1, model.DocumentPending, "bio.txt")

	ok, err := repo.TransitionStatus(ctx, doc.ID, []model.DocumentStatus{model.DocumentPending}, model.DocumentProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, doc.ID, []model.DocumentStatus{model.DocumentProcessing}, model.DocumentCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, doc.ID, []model.DocumentStatus{model.DocumentPending, model.DocumentProcessing}, model.DocumentFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentCompleted, got.ProcessingStatus)
}

func TestDocumentRepository_DeleteCascade(t *testing.T) {
	db := repotest.NewDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, db, 1, model.DocumentCompleted, "bio.txt")
	keep := seedDocument(t, db, 1, model.DocumentCompleted, "chem.txt")
	seedChunk(t, db, doc.ID, 0, "a", []float32{1, 0})
	seedChunk(t, db, doc.ID, 1, "b", nil)
	kept := seedChunk(t, db, keep.ID, 0, "c", []float32{0, 1})

	ok, err := repo.DeleteCascade(ctx, doc.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "other users cannot delete")

	ok, err = repo.DeleteCascade(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	var chunks, embeddings int64
	require.NoError(t, db.Model(&model.Chunk{}).Count(&chunks).Error)
	require.NoError(t, db.Model(&model.Embedding{}).Count(&embeddings).Error)
	assert.Equal(t, int64(1), chunks)
	assert.Equal(t, int64(1), embeddings)

	var emb model.Embedding
	require.NoError(t, db.First(&emb).Error)
	assert.Equal(t, kept.ID, emb.ChunkID)
}
