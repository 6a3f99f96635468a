package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"blogapi/cache"
	"blogapi/models"
	"blogapi/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvent struct {
	UserID uint
	Type   string
	Data   interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingNotifier) BroadcastToUser(userID uint, messageType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Type: messageType, Data: data})
}

func (r *recordingNotifier) Events() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type fixture struct {
	db       *gorm.DB
	users    *UserService
	posts    *PostService
	notifier *recordingNotifier
}

func newFixture(t *testing.T, c *cache.Cache, adminEmails ...string) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	users := NewUserService(db, adminEmails)
	notifier := &recordingNotifier{}
	return &fixture{
		db:       db,
		users:    users,
		posts:    NewPostService(db, users, c, notifier),
		notifier: notifier,
	}
}

func (f *fixture) signup(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := f.users.Signup(context.Background(), &models.SignupRequest{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) createPost(t *testing.T, authorID uint, req models.CreatePostRequest) *models.PostResponse {
	t.Helper()
	if req.Content == "" {
		req.Content = "Some content for " + req.Title
	}
	post, err := f.posts.CreatePost(context.Background(), authorID, &req)
	require.NoError(t, err)
	return post
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func assertKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
}

func titles(posts []models.PostResponse) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}
