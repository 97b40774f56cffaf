package seed

import (
	"log"
	"math/rand"
	"time"

	"askstack/internal/models"

	"gorm.io/gorm"
)

// Seeder orchestrates demo data creation.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	r       *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	// #nosec G404: acceptable for seeding
	return &Seeder{db: db, factory: NewFactory(db), r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// ClearAll removes every row from the domain tables, children first.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")

	tables := []string{"replies", "question_tags", "questions", "tags", "follows", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedCommunity creates numUsers users with a sparse follow mesh, then
// numQuestions tagged questions with a few replies each.
func (s *Seeder) SeedCommunity(numUsers, numQuestions int) error {
	log.Printf("Creating %d users...", numUsers)

	users := make([]*models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return err
		}
		users = append(users, user)
	}

	// Each user follows roughly a fifth of the others.
	for _, follower := range users {
		for _, followee := range users {
			if follower.ID == followee.ID || s.r.Intn(5) != 0 {
				continue
			}
			if err := s.factory.CreateFollow(follower, followee); err != nil {
				return err
			}
		}
	}

	log.Printf("Creating %d questions...", numQuestions)
	for i := 0; i < numQuestions; i++ {
		author := users[s.r.Intn(len(users))]
		question, err := s.factory.CreateQuestion(author)
		if err != nil {
			return err
		}

		for j := s.r.Intn(4); j > 0; j-- {
			replier := users[s.r.Intn(len(users))]
			if _, err := s.factory.CreateReply(replier, question); err != nil {
				return err
			}
		}
	}

	return nil
}
