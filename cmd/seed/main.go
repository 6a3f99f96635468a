// Command seed fills the configured database with demo users, posts, likes
// and comments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"blogapi/config"
	"blogapi/database"
	"blogapi/models"
	"blogapi/observability"
	"blogapi/services"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
)

const demoPassword = "password123"

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := observability.Init(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	users := services.NewUserService(db, cfg.AdminEmailList())
	posts := services.NewPostService(db, users, nil, nil)
	s := &seeder{faker: gofakeit.New(*seed), users: users, posts: posts}

	ctx := context.Background()
	userIDs, err := s.seedUsers(ctx, *numUsers)
	if err != nil {
		log.Error("user seeding failed", "error", err)
		os.Exit(1)
	}
	if err := s.seedPosts(ctx, userIDs, *numPosts); err != nil {
		log.Error("post seeding failed", "error", err)
		os.Exit(1)
	}

	log.Info("seeding complete", "users", len(userIDs), "posts", *numPosts, "password", demoPassword)
}

type seeder struct {
	faker *gofakeit.Faker
	users *services.UserService
	posts *services.PostService
}

func (s *seeder) seedUsers(ctx context.Context, n int) ([]uint, error) {
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		user, err := s.users.Signup(ctx, &models.SignupRequest{
			Username: fmt.Sprintf("%s%d", s.faker.Username(), s.faker.Number(100, 999)),
			Email:    fmt.Sprintf("%d.%s", i, s.faker.Email()),
			Password: demoPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("creating user %d: %w", i, err)
		}
		if err := s.users.UpdateAbout(ctx, user.ID, &models.UpdateAboutRequest{About: s.faker.Sentence(12)}); err != nil {
			return nil, fmt.Errorf("setting about for user %d: %w", user.ID, err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (s *seeder) seedPosts(ctx context.Context, userIDs []uint, n int) error {
	if len(userIDs) == 0 {
		return nil
	}

	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	for i := 0; i < n; i++ {
		author := userIDs[s.faker.Number(0, len(userIDs)-1)]
		published := s.faker.Number(1, 10) > 2

		tags := make([]string, s.faker.Number(0, 4))
		for j := range tags {
			tags[j] = s.faker.Word()
		}

		post, err := s.posts.CreatePost(ctx, author, &models.CreatePostRequest{
			Title:       strings.TrimSuffix(s.faker.Sentence(6), "."),
			Content:     s.faker.Paragraph(4, 5, 12, "\n\n"),
			Tags:        tags,
			Image:       fmt.Sprintf("https://picsum.photos/seed/%s/800/450", s.faker.UUID()),
			Category:    s.faker.RandomString(categories),
			IsPublished: &published,
		})
		if err != nil {
			return fmt.Errorf("creating post %d: %w", i, err)
		}

		for _, reader := range userIDs {
			if reader == author {
				continue
			}
			if s.faker.Number(1, 3) == 1 {
				if _, err := s.posts.ToggleLike(ctx, post.ID, reader); err != nil {
					return fmt.Errorf("liking post %d: %w", post.ID, err)
				}
			}
			if s.faker.Number(1, 5) == 1 {
				if _, err := s.posts.AddComment(ctx, post.ID, reader, s.faker.Sentence(10)); err != nil {
					return fmt.Errorf("commenting on post %d: %w", post.ID, err)
				}
			}
		}

		for v := s.faker.Number(0, 20); v > 0; v-- {
			if _, err := s.posts.IncrementViews(ctx, post.ID); err != nil {
				return fmt.Errorf("viewing post %d: %w", post.ID, err)
			}
		}
	}
	return nil
}
