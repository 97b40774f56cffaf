// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"askstack/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// topics is the tag pool demo questions draw from.
var topics = []string{
	"python", "go", "flask", "postgres", "redis", "docker",
	"testing", "git", "linux", "algorithms", "networking", "vim",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db *gorm.DB
	r  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	user := &models.User{
		Username:     gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:        gofakeit.Email(),
		PasswordHash: string(hashedPassword),
		AboutMe:      gofakeit.Sentence(8),
		IsTeacher:    f.r.Intn(10) == 0,
		LastSeen:     time.Now().Add(-time.Duration(f.r.Intn(72)) * time.Hour),
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateQuestion constructs and persists a question by the given user with
// one to three random topic tags, its created_at spread over the past days.
func (f *Factory) CreateQuestion(user *models.User, overrides ...func(*models.Question)) (*models.Question, error) {
	question := &models.Question{
		Body:   gofakeit.Question(),
		UserID: user.ID,
	}

	daysBack := f.r.Intn(90)
	hoursBack := f.r.Intn(24)
	question.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(question)
	}

	names := f.pickTopics(1 + f.r.Intn(3))
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		for _, name := range names {
			var tag models.Tag
			if err := tx.Where("name = ?", name).FirstOrCreate(&tag, models.Tag{Name: name}).Error; err != nil {
				return err
			}
			if err := tx.Model(question).Association("Tags").Append(&tag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

// CreateReply constructs and persists a reply on the provided question
// authored by the provided user.
func (f *Factory) CreateReply(user *models.User, question *models.Question, overrides ...func(*models.Reply)) (*models.Reply, error) {
	reply := &models.Reply{
		Body:       gofakeit.Sentence(10),
		UserID:     user.ID,
		QuestionID: question.ID,
	}

	for _, override := range overrides {
		override(reply)
	}

	if err := f.db.Create(reply).Error; err != nil {
		return nil, err
	}
	return reply, nil
}

// CreateFollow persists a follow edge from follower to followee.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	follow := &models.Follow{
		FollowerID: follower.ID,
		FolloweeID: followee.ID,
	}
	return f.db.Where(follow).FirstOrCreate(follow).Error
}

func (f *Factory) pickTopics(n int) []string {
	picked := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(picked) < n {
		name := topics[f.r.Intn(len(topics))]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		picked = append(picked, name)
	}
	// deterministic order within a question keeps output readable
	if len(picked) > 1 && strings.Compare(picked[0], picked[len(picked)-1]) > 0 {
		picked[0], picked[len(picked)-1] = picked[len(picked)-1], picked[0]
	}
	return picked
}
