package repository

import (
	"context"
	"testing"

	"askstack/internal/cache"
	"askstack/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCache(t *testing.T) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
}

func TestUserCacheHitKeepsPasswordHash(t *testing.T) {
	withCache(t)
	db := testDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	const hash = "$2a$10$realhash"
	alice := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: hash}
	require.NoError(t, repo.Create(ctx, alice))

	// First read populates the cache, second is served from it.
	first, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, hash, first.PasswordHash)

	second, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, hash, second.PasswordHash, "cache hit must not lose the hash")

	// Saving an entity obtained from a cache hit must not wipe the stored hash.
	second.AboutMe = "updated"
	require.NoError(t, repo.Update(ctx, second))

	var row models.User
	require.NoError(t, db.First(&row, alice.ID).Error)
	assert.Equal(t, hash, row.PasswordHash)
	assert.Equal(t, "updated", row.AboutMe)
}

func TestQuestionCacheAsideAndInvalidation(t *testing.T) {
	withCache(t)
	db := testDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	q := seedQuestion(t, db, alice.ID, "cached?", "python")
	repo := NewQuestionRepository(db)

	first, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached?", first.Body)
	require.Len(t, first.Tags, 1)

	// Remove the row out from under the cache; the hit still serves it.
	require.NoError(t, db.Unscoped().Delete(&models.Question{}, q.ID).Error)
	second, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached?", second.Body)

	// A new reply invalidates the entry, so the miss now surfaces.
	reply := &models.Reply{Body: "stale no more", UserID: alice.ID, QuestionID: q.ID}
	require.NoError(t, repo.CreateReply(ctx, reply))

	_, err = repo.GetByID(ctx, q.ID)
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCreateWithTagsRollsBackOnAssociationFailure(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	repo := NewQuestionRepository(db)

	// Breaking the join table makes the association step fail after the
	// question insert and the tag insert have already run.
	require.NoError(t, db.Exec("DROP TABLE question_tags").Error)

	q := &models.Question{Body: "doomed", UserID: alice.ID}
	err := repo.CreateWithTags(ctx, q, []string{"orphan"})
	require.Error(t, err)

	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)

	// The whole write rolls back: no orphan tag, no half-written question.
	var tagCount, questionCount int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	require.NoError(t, db.Model(&models.Question{}).Count(&questionCount).Error)
	assert.Zero(t, tagCount)
	assert.Zero(t, questionCount)
}
