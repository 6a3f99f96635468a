package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"blogapi/cache"
	"blogapi/models"
	"blogapi/observability"

	"gorm.io/gorm"
)

// Notifier delivers a best-effort event to every live connection of a user.
type Notifier interface {
	BroadcastToUser(userID uint, messageType string, data interface{})
}

type PostService struct {
	db       *gorm.DB
	users    *UserService
	cache    *cache.Cache
	notifier Notifier
	now      func() time.Time
}

func NewPostService(db *gorm.DB, users *UserService, c *cache.Cache, notifier Notifier) *PostService {
	return &PostService{
		db:       db,
		users:    users,
		cache:    c,
		notifier: notifier,
		now:      time.Now,
	}
}

type ListFilter struct {
	Category string
	Tag      string
	Featured bool
	Search   string
	Sort     SortKey
}

type SearchParams struct {
	Query    string
	Tag      string
	Category string
	Author   string
	Sort     SortKey
}

func (s *PostService) CreatePost(ctx context.Context, authorID uint, req *models.CreatePostRequest) (*models.PostResponse, error) {
	req.Normalize()
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:    authorID,
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Image:       optionalString(req.Image),
		Category:    models.Category(req.Category),
		IsPublished: true,
		Tags:        models.NewPostTags(req.Tags),
	}
	if req.IsPublished != nil {
		post.IsPublished = *req.IsPublished
	}

	post.Derive()
	if post.Slug != nil {
		slug, err := s.uniqueSlug(ctx, *post.Slug)
		if err != nil {
			return nil, err
		}
		post.Slug = &slug
	}

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, postStoreError(err)
	}

	s.invalidateAggregates(ctx)
	return s.present(ctx, post)
}

// uniqueSlug returns base, or base suffixed with the first free -n.
func (s *PostService) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", models.NewInternalError(err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = models.SlugWithSuffix(base, n)
	}
}

func (s *PostService) GetPost(ctx context.Context, postID uint) (*models.PostDetailResponse, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.presentDetail(ctx, post)
}

func (s *PostService) GetPostBySlug(ctx context.Context, slug string) (*models.PostDetailResponse, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("slug = ?", strings.TrimSpace(slug)).First(&post).Error; err != nil {
		return nil, postStoreError(err)
	}
	return s.presentDetail(ctx, &post)
}

// ListPosts pages through published posts.
func (s *PostService) ListPosts(ctx context.Context, filter ListFilter, p Pagination) (*models.PostPage, error) {
	return s.paginate(ctx, PostQuery{
		PublishedOnly: true,
		Category:      filter.Category,
		Tag:           filter.Tag,
		FeaturedOnly:  filter.Featured,
		Search:        filter.Search,
		Sort:          filter.Sort,
	}, p)
}

// ListUserPosts pages through the caller's own posts, drafts included unless
// draft narrows the listing.
func (s *PostService) ListUserPosts(ctx context.Context, userID uint, draft *bool, p Pagination) (*models.PostPage, error) {
	q := PostQuery{AuthorID: userID}
	if draft != nil {
		published := !*draft
		q.Published = &published
	}
	return s.paginate(ctx, q, p)
}

func (s *PostService) ListPostsByAuthor(ctx context.Context, authorID uint, p Pagination) (*models.PostPage, error) {
	return s.paginate(ctx, PostQuery{PublishedOnly: true, AuthorID: authorID}, p)
}

func (s *PostService) SearchPosts(ctx context.Context, params SearchParams, p Pagination) (*models.PostPage, error) {
	q := PostQuery{
		PublishedOnly: true,
		Search:        params.Query,
		Tag:           params.Tag,
		Category:      params.Category,
		Sort:          params.Sort,
	}
	if author := strings.TrimSpace(params.Author); author != "" {
		ids, err := s.users.FindIDsByUsername(ctx, author)
		if err != nil {
			return nil, err
		}
		q.FilterAuthors = true
		q.AuthorIDs = ids
	}
	return s.paginate(ctx, q, p)
}

func (s *PostService) PostsByTag(ctx context.Context, tag string, p Pagination) (*models.PostPage, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, models.NewValidationError("tag is required")
	}
	return s.paginate(ctx, PostQuery{PublishedOnly: true, Tag: tag}, p)
}

// PopularPosts ranks published posts by views, then likes, within the timeframe.
func (s *PostService) PopularPosts(ctx context.Context, limit int, timeframe string) ([]models.PostResponse, error) {
	p := NewPagination(1, limit, 5)
	timeframe = normalizeTimeframe(timeframe)

	var posts []models.PostResponse
	err := s.cache.Aside(ctx, cache.PopularKey(timeframe, p.Limit), &posts, cache.PopularTTL, func() error {
		q := PostQuery{
			PublishedOnly: true,
			CreatedAfter:  timeframeStart(timeframe, s.now()),
			Sort:          sortPopular,
		}
		var rows []models.Post
		if err := q.order(q.apply(s.db.WithContext(ctx))).Limit(p.Limit).Find(&rows).Error; err != nil {
			return models.NewInternalError(err)
		}
		var err error
		posts, err = s.presentAll(ctx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// AllTags counts tag usage across published posts, most used first.
func (s *PostService) AllTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	err := s.cache.Aside(ctx, cache.TagsKey(), &tags, cache.TagsTTL, func() error {
		tags = []models.TagCount{}
		err := s.db.WithContext(ctx).Table("post_tags").
			Select("post_tags.name AS name, COUNT(*) AS count").
			Joins("JOIN posts ON posts.id = post_tags.post_id").
			Where("posts.is_published = ?", true).
			Group("post_tags.name").
			Order("count DESC").
			Order("name ASC").
			Scan(&tags).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	return tags, nil
}

func (s *PostService) paginate(ctx context.Context, q PostQuery, p Pagination) (*models.PostPage, error) {
	var total int64
	if err := q.apply(s.db.WithContext(ctx)).Count(&total).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var rows []models.Post
	if err := q.order(q.apply(s.db.WithContext(ctx))).Offset(p.Offset()).Limit(p.Limit).Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	posts, err := s.presentAll(ctx, rows)
	if err != nil {
		return nil, err
	}
	return newPostPage(posts, total, p), nil
}

func (s *PostService) findPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		return nil, postStoreError(err)
	}
	return &post, nil
}

func (s *PostService) present(ctx context.Context, post *models.Post) (*models.PostResponse, error) {
	out, err := s.presentAll(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// presentDetail is present plus the post's likers, oldest like first, and its
// comments in creation order.
func (s *PostService) presentDetail(ctx context.Context, post *models.Post) (*models.PostDetailResponse, error) {
	base, err := s.present(ctx, post)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var likeRows []models.PostLike
	if err := db.Where("post_id = ?", post.ID).Order("created_at").Find(&likeRows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	var commentRows []models.Comment
	if err := db.Where("post_id = ?", post.ID).Order("created_at").Order("id").Find(&commentRows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	userIDs := make([]uint, 0, len(likeRows)+len(commentRows))
	for _, l := range likeRows {
		userIDs = append(userIDs, l.UserID)
	}
	for _, c := range commentRows {
		userIDs = append(userIDs, c.UserID)
	}
	summaries, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	resp := &models.PostDetailResponse{
		PostResponse: *base,
		Likes:        make([]models.UserSummary, 0, len(likeRows)),
		Comments:     make([]models.CommentResponse, 0, len(commentRows)),
	}
	for _, l := range likeRows {
		if summary, ok := summaries[l.UserID]; ok {
			resp.Likes = append(resp.Likes, summary)
		}
	}
	for _, c := range commentRows {
		resp.Comments = append(resp.Comments, commentResponse(c, summaries))
	}
	return resp, nil
}

type postCount struct {
	PostID uint
	Count  int64
}

// presentAll loads tags and counters for posts and resolves every referenced
// user with one summary lookup.
func (s *PostService) presentAll(ctx context.Context, posts []models.Post) ([]models.PostResponse, error) {
	out := make([]models.PostResponse, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	db := s.db.WithContext(ctx)
	postIDs := make([]uint, len(posts))
	userIDs := make([]uint, 0, len(posts))
	for i := range posts {
		postIDs[i] = posts[i].ID
		userIDs = append(userIDs, posts[i].AuthorID)
	}

	var tagRows []models.PostTag
	if err := db.Where("post_id IN ?", postIDs).Order("post_id").Order("position").Find(&tagRows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	tags := make(map[uint][]string, len(posts))
	for _, t := range tagRows {
		tags[t.PostID] = append(tags[t.PostID], t.Name)
	}

	likeCounts, err := countByPost(db, &models.PostLike{}, postIDs)
	if err != nil {
		return nil, err
	}
	commentCounts, err := countByPost(db, &models.Comment{}, postIDs)
	if err != nil {
		return nil, err
	}

	summaries, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		p := &posts[i]
		resp := models.PostResponse{
			ID:           p.ID,
			Author:       summaryRef(summaries, p.AuthorID),
			Title:        p.Title,
			Content:      p.Content,
			Excerpt:      p.Excerpt,
			Tags:         tags[p.ID],
			Image:        p.Image,
			Category:     p.Category,
			IsPublished:  p.IsPublished,
			IsFeatured:   p.IsFeatured,
			Views:        p.Views,
			ReadTime:     p.ReadTime,
			Slug:         p.Slug,
			LikeCount:    likeCounts[p.ID],
			CommentCount: commentCounts[p.ID],
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
		}
		if resp.Tags == nil {
			resp.Tags = []string{}
		}
		out = append(out, resp)
	}
	return out, nil
}

func countByPost(db *gorm.DB, model interface{}, postIDs []uint) (map[uint]int64, error) {
	var rows []postCount
	err := db.Model(model).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.Count
	}
	return counts, nil
}

func commentResponse(c models.Comment, summaries map[uint]models.UserSummary) models.CommentResponse {
	return models.CommentResponse{
		ID:        c.ID,
		User:      summaryRef(summaries, c.UserID),
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func summaryRef(summaries map[uint]models.UserSummary, id uint) *models.UserSummary {
	summary, ok := summaries[id]
	if !ok {
		return nil
	}
	return &summary
}

func (s *PostService) invalidateAggregates(ctx context.Context) {
	s.cache.Invalidate(ctx, cache.TagsKey())
	s.cache.InvalidatePrefix(ctx, cache.PopularPrefix)
}

func (s *PostService) notify(ctx context.Context, userID uint, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToUser(userID, event, data)
	observability.FromContext(ctx).Debug("notification queued", "user_id", userID, "event", event)
}

func postStoreError(err error) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError("Post")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewConflictError("A post with this slug already exists")
	default:
		return models.NewInternalError(err)
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
