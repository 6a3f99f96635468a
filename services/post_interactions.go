package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"blogapi/cache"
	"blogapi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpdatePost applies the fields present in req to a post owned by requesterID.
// The read and the write are not guarded against a concurrent update; the last
// save wins.
func (s *PostService) UpdatePost(ctx context.Context, postID, requesterID uint, req *models.UpdatePostRequest) (*models.PostDetailResponse, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		return nil, models.NewForbiddenError("Not authorized to update this post")
	}

	req.Normalize()
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, models.NewValidationError("title is required")
		}
		post.Title = *req.Title
	}
	if req.Content != nil {
		if *req.Content == "" {
			return nil, models.NewValidationError("content is required")
		}
		post.Content = *req.Content
	}
	if req.Excerpt != nil {
		post.Excerpt = *req.Excerpt
	}
	if req.Image != nil && *req.Image != "" {
		post.Image = req.Image
	}
	if req.Category != nil && *req.Category != "" {
		post.Category = models.Category(*req.Category)
	}
	if req.IsPublished != nil {
		post.IsPublished = *req.IsPublished
	}

	// A post created with an unsluggable title gets its slug on the first
	// rename that produces one, deduplicated like a fresh post.
	if post.Slug == nil {
		if base := models.Slugify(post.Title); base != "" {
			slug, err := s.uniqueSlug(ctx, base)
			if err != nil {
				return nil, err
			}
			post.Slug = &slug
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(post).Error; err != nil {
			return err
		}
		if req.Tags == nil {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		tags := models.NewPostTags(req.Tags)
		for i := range tags {
			tags[i].PostID = post.ID
		}
		if len(tags) == 0 {
			return nil
		}
		return tx.Create(&tags).Error
	})
	if err != nil {
		return nil, postStoreError(err)
	}

	s.invalidateAggregates(ctx)
	return s.presentDetail(ctx, post)
}

// DeletePost removes a post owned by requesterID along with its tags, likes
// and comments.
func (s *PostService) DeletePost(ctx context.Context, postID, requesterID uint) error {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		return models.NewForbiddenError("Not authorized to delete this post")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.PostTag{}, &models.PostLike{}, &models.Comment{}} {
			if err := tx.Where("post_id = ?", post.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Post{}, post.ID).Error
	})
	if err != nil {
		return postStoreError(err)
	}

	s.invalidateAggregates(ctx)
	return nil
}

// ToggleLike adds userID's like to the post, or removes it when present.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (*models.LikeResult, error) {
	var (
		result   models.LikeResult
		authorID uint
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "author_id").First(&post, postID).Error; err != nil {
			return err
		}
		authorID = post.AuthorID

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error; err != nil {
				return err
			}
			result.Liked = true
		}

		return tx.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&result.Likes).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("Like is already being processed")
		}
		return nil, postStoreError(err)
	}

	s.cache.InvalidatePrefix(ctx, cache.PopularPrefix)
	if result.Liked && authorID != userID {
		s.notify(ctx, authorID, models.EventPostLiked, map[string]interface{}{
			"postId": postID,
			"userId": userID,
			"likes":  result.Likes,
		})
	}
	return &result, nil
}

func (s *PostService) AddComment(ctx context.Context, postID, userID uint, text string) (*models.CommentResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxCommentRunes {
		return nil, models.NewValidationError("Comment cannot exceed 1000 characters")
	}

	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{PostID: post.ID, UserID: userID, Text: text}
	var total int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&total).Error
	})
	if err != nil {
		return nil, postStoreError(err)
	}

	summaries, err := s.users.Summaries(ctx, []uint{userID})
	if err != nil {
		return nil, err
	}

	result := &models.CommentResult{
		Comment:       commentResponse(comment, summaries),
		TotalComments: total,
	}

	if post.AuthorID != userID {
		s.notify(ctx, post.AuthorID, models.EventCommentAdded, map[string]interface{}{
			"postId":  post.ID,
			"comment": result.Comment,
		})
	}
	return result, nil
}

// DeleteComment removes a comment when the requester wrote it or owns the post.
// It returns the number of comments left on the post.
func (s *PostService) DeleteComment(ctx context.Context, postID uint, commentID string, requesterID uint) (int64, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return 0, err
	}

	var comment models.Comment
	err = s.db.WithContext(ctx).Where("id = ? AND post_id = ?", commentID, post.ID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("Comment")
		}
		return 0, models.NewInternalError(err)
	}

	if comment.UserID != requesterID && post.AuthorID != requesterID {
		return 0, models.NewForbiddenError("Not authorized to delete this comment")
	}

	var remaining int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&remaining).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return remaining, nil
}

// IncrementViews bumps the view counter in a single statement and returns the
// value that statement produced.
func (s *PostService) IncrementViews(ctx context.Context, postID uint) (int64, error) {
	var views int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Post{}).Select("views").Where("id = ?", postID).Scan(&views).Error
	})
	if err != nil {
		return 0, postStoreError(err)
	}
	return views, nil
}

// ToggleFeatured flips the featured flag. Callers must hold the admin capability.
func (s *PostService) ToggleFeatured(ctx context.Context, postID uint) (bool, error) {
	var featured bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]interface{}{
			"is_featured": gorm.Expr("NOT is_featured"),
			"updated_at":  s.now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Post{}).Select("is_featured").Where("id = ?", postID).Scan(&featured).Error
	})
	if err != nil {
		return false, postStoreError(err)
	}

	s.invalidateAggregates(ctx)
	return featured, nil
}
