package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/votes"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating communities...")
	communities, err := s.seedCommunities(users, 12)
	if err != nil {
		return fmt.Errorf("failed to seed communities: %w", err)
	}

	log("Creating memberships...")
	if err := s.seedMemberships(users, communities); err != nil {
		return fmt.Errorf("failed to seed memberships: %w", err)
	}

	log("Creating posts...")
	posts, err := s.seedPosts(users, communities, 300)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	log("Creating comments...")
	if err := s.seedComments(users, posts, 800); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	log("Casting votes...")
	if err := s.seedVotes(users, posts); err != nil {
		return fmt.Errorf("failed to seed votes: %w", err)
	}

	log("Seeding complete")
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	// one shared password keeps dev logins simple
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	hashedStr := string(hashed)

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), i)
		user := models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@%s", username, gofakeit.DomainName()),
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.Sentence(8),
			PasswordHash: &hashedStr,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedCommunities(users []models.User, count int) ([]models.Community, error) {
	communities := make([]models.Community, 0, count)
	for i := 0; i < count; i++ {
		creator := users[rand.Intn(len(users))]
		name := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.NounAbstract()), i)
		community := models.Community{
			Name:        name,
			Title:       gofakeit.BookTitle(),
			Description: gofakeit.Sentence(12),
			Topics:      []string{gofakeit.NounConcrete(), gofakeit.NounConcrete()},
			CreatedByID: creator.ID,
		}
		if err := s.db.Create(&community).Error; err != nil {
			return nil, err
		}
		communities = append(communities, community)
	}
	return communities, nil
}

func (s *Seeder) seedMemberships(users []models.User, communities []models.Community) error {
	for _, user := range users {
		joined := rand.Perm(len(communities))[:rand.Intn(len(communities)/2)+1]
		for _, idx := range joined {
			membership := models.Membership{
				UserID:      user.ID,
				CommunityID: communities[idx].ID,
				Favorite:    rand.Intn(10) == 0,
			}
			if err := s.db.Create(&membership).Error; err != nil {
				return err
			}
			err := s.db.Model(&models.Community{}).
				Where("id = ?", communities[idx].ID).
				UpdateColumn("members_count", gorm.Expr("members_count + 1")).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedPosts(users []models.User, communities []models.Community, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		post := models.Post{
			Title:     gofakeit.Sentence(6),
			AuthorID:  author.ID,
			CreatedAt: time.Now().Add(-time.Duration(rand.Intn(96)) * time.Hour),
		}

		// mix of text, link and homeless profile posts
		switch rand.Intn(4) {
		case 0:
			post.URL = gofakeit.URL()
		case 1:
			post.MediaURL = gofakeit.URL()
		default:
			post.Body = gofakeit.Paragraph(1, 3, 12, " ")
		}
		if rand.Intn(10) > 0 {
			communityID := communities[rand.Intn(len(communities))].ID
			post.CommunityID = &communityID
		}

		if err := s.db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) seedComments(users []models.User, posts []models.Post, count int) error {
	created := make([]models.Comment, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]

		comment := models.Comment{
			PostID:   post.ID,
			AuthorID: author.ID,
			Body:     gofakeit.Sentence(10),
		}

		// reply to an existing comment on the same post sometimes
		if len(created) > 0 && rand.Intn(3) == 0 {
			parent := created[rand.Intn(len(created))]
			comment.PostID = parent.PostID
			comment.ParentID = &parent.ID
			comment.Depth = parent.Depth + 1
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
				UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
		})
		if err != nil {
			return err
		}
		created = append(created, comment)
	}
	return nil
}

func (s *Seeder) seedVotes(users []models.User, posts []models.Post) error {
	for _, post := range posts {
		voters := rand.Perm(len(users))[:rand.Intn(len(users)/3)+1]
		for _, idx := range voters {
			value := votes.Up
			if rand.Intn(5) == 0 {
				value = votes.Down
			}
			if _, err := votes.Apply(s.db, votes.KindPost, post.ID, users[idx].ID, value); err != nil {
				return err
			}
		}
	}
	return nil
}
