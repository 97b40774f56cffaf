package repository

import (
	"context"
	"errors"
	"strings"

	"askstack/internal/cache"
	"askstack/internal/models"

	"gorm.io/gorm"
)

// QuestionRepository defines persistence operations for questions and replies.
type QuestionRepository interface {
	CreateWithTags(ctx context.Context, question *models.Question, tagNames []string) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	ListAll(ctx context.Context, page, perPage int) ([]models.Question, int64, error)
	ListByAuthor(ctx context.Context, userID uint, page, perPage int) ([]models.Question, int64, error)
	ListByTag(ctx context.Context, tagID uint, page, perPage int) ([]models.Question, int64, error)
	ListFeed(ctx context.Context, userID uint, page, perPage int) ([]models.Question, int64, error)
	SearchByTagNames(ctx context.Context, names []string, page, perPage int) ([]models.Question, int64, error)
	CreateReply(ctx context.Context, reply *models.Reply) error
	ListReplies(ctx context.Context, questionID uint, page, perPage int) ([]models.Reply, int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

// NormalizeTagNames trims surrounding whitespace, drops empty entries and
// deduplicates by exact name, preserving submission order. Case is preserved.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// CreateWithTags persists the question and its tag associations in a single
// transaction. Existing tags are reused by exact trimmed-name match; missing
// ones are created. Any failure rolls the whole write back, so a tag never
// outlives a failed question insert.
func (r *questionRepository) CreateWithTags(ctx context.Context, question *models.Question, tagNames []string) error {
	names := NormalizeTagNames(tagNames)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return err
		}

		for _, name := range names {
			var tag models.Tag
			if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				tag = models.Tag{Name: name}
				if err := tx.Create(&tag).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(question).Association("Tags").Append(&tag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}

	if len(names) > 0 {
		cache.InvalidateTagList(ctx)
	}
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	key := cache.QuestionKey(id)

	err := cache.Aside(ctx, key, &question, cache.QuestionTTL, func() error {
		if err := r.db.WithContext(ctx).
			Preload("User").
			Preload("Tags").
			First(&question, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Question", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// listPage runs the shared count+fetch pair for a prepared question query.
// The query must not carry ordering; newest-first is applied here.
func (r *questionRepository) listPage(query *gorm.DB, page, perPage int) ([]models.Question, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Model(&models.Question{}).Distinct("questions.id").Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var questions []models.Question
	if err := query.Session(&gorm.Session{}).
		Preload("User").
		Preload("Tags").
		Order("questions.created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&questions).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return questions, total, nil
}

func (r *questionRepository) ListAll(ctx context.Context, page, perPage int) ([]models.Question, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Question{})
	return r.listPage(query, page, perPage)
}

func (r *questionRepository) ListByAuthor(ctx context.Context, userID uint, page, perPage int) ([]models.Question, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("questions.user_id = ?", userID)
	return r.listPage(query, page, perPage)
}

func (r *questionRepository) ListByTag(ctx context.Context, tagID uint, page, perPage int) ([]models.Question, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Joins("JOIN question_tags qt ON qt.question_id = questions.id").
		Where("qt.tag_id = ?", tagID)
	return r.listPage(query, page, perPage)
}

// ListFeed returns questions authored by users the given user follows, plus
// the user's own.
func (r *questionRepository) ListFeed(ctx context.Context, userID uint, page, perPage int) ([]models.Question, int64, error) {
	followed := r.db.Model(&models.Follow{}).
		Select("followee_id").
		Where("follower_id = ?", userID)
	query := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("questions.user_id IN (?) OR questions.user_id = ?", followed, userID)
	return r.listPage(query, page, perPage)
}

// SearchByTagNames returns questions carrying ALL of the given tags.
func (r *questionRepository) SearchByTagNames(ctx context.Context, names []string, page, perPage int) ([]models.Question, int64, error) {
	names = NormalizeTagNames(names)
	if len(names) == 0 {
		return []models.Question{}, 0, nil
	}

	matching := r.db.Model(&models.Question{}).
		Select("questions.id").
		Joins("JOIN question_tags qt ON qt.question_id = questions.id").
		Joins("JOIN tags ON tags.id = qt.tag_id").
		Where("tags.name IN ?", names).
		Group("questions.id").
		Having("COUNT(DISTINCT tags.id) = ?", len(names))

	query := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("questions.id IN (?)", matching)
	return r.listPage(query, page, perPage)
}

func (r *questionRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateQuestion(ctx, reply.QuestionID)
	return nil
}

// ListReplies returns a question's replies in thread order (oldest first).
func (r *questionRepository) ListReplies(ctx context.Context, questionID uint, page, perPage int) ([]models.Reply, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Reply{}).
		Where("question_id = ?", questionID).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var replies []models.Reply
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("question_id = ?", questionID).
		Order("created_at ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&replies).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return replies, total, nil
}
