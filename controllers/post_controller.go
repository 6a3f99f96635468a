package controllers

import (
	"net/http"
	"strings"

	"blogapi/models"
	"blogapi/services"

	"github.com/gin-gonic/gin"
)

type PostController struct {
	postService *services.PostService
}

func NewPostController(postService *services.PostService) *PostController {
	return &PostController{postService: postService}
}

func pagination(c *gin.Context) services.Pagination {
	return services.DefaultPagination(queryInt(c, "page"), queryInt(c, "limit"))
}

// ListPosts godoc
// @Summary List published posts
// @Tags posts
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sortBy query string false "newest, oldest, mostViewed, mostLiked or featured"
// @Param category query string false "Category, or all"
// @Param tag query string false "Tag"
// @Param featured query bool false "Only featured posts"
// @Param search query string false "Substring of title, content or a tag"
// @Success 200 {object} models.PostPage
// @Router /post/allPost [get]
func (pc *PostController) ListPosts(c *gin.Context) {
	filter := services.ListFilter{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Featured: c.Query("featured") == "true",
		Search:   c.Query("search"),
		Sort:     services.ParseSort(c.Query("sortBy")),
	}

	page, err := pc.postService.ListPosts(c.Request.Context(), filter, pagination(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SearchPosts godoc
// @Summary Search published posts
// @Tags posts
// @Produce json
// @Param q query string false "Substring of title, content or a tag"
// @Param tag query string false "Tag"
// @Param category query string false "Category"
// @Param author query string false "Author username fragment"
// @Param sortBy query string false "Sort key"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.PostPage
// @Router /post/search [get]
func (pc *PostController) SearchPosts(c *gin.Context) {
	params := services.SearchParams{
		Query:    c.Query("q"),
		Tag:      c.Query("tag"),
		Category: c.Query("category"),
		Author:   c.Query("author"),
		Sort:     services.ParseSort(c.Query("sortBy")),
	}

	page, err := pc.postService.SearchPosts(c.Request.Context(), params, pagination(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// PopularPosts godoc
// @Summary Most viewed published posts
// @Tags posts
// @Produce json
// @Param limit query int false "Number of posts"
// @Param timeframe query string false "all, week, month or year"
// @Success 200 {object} map[string][]models.PostResponse
// @Router /post/popular [get]
func (pc *PostController) PopularPosts(c *gin.Context) {
	posts, err := pc.postService.PopularPosts(c.Request.Context(), queryInt(c, "limit"), c.Query("timeframe"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// AllTags godoc
// @Summary Tag usage counts across published posts
// @Tags posts
// @Produce json
// @Success 200 {object} map[string][]models.TagCount
// @Router /post/tags [get]
func (pc *PostController) AllTags(c *gin.Context) {
	tags, err := pc.postService.AllTags(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// PostsByTag godoc
// @Summary Published posts carrying a tag
// @Tags posts
// @Produce json
// @Param tag path string true "Tag"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.PostPage
// @Router /post/tag/{tag} [get]
func (pc *PostController) PostsByTag(c *gin.Context) {
	tag := strings.ToLower(strings.TrimSpace(c.Param("tag")))

	page, err := pc.postService.PostsByTag(c.Request.Context(), tag, pagination(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":       page.Posts,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
		"total":       page.Total,
		"hasNext":     page.HasNext,
		"hasPrev":     page.HasPrev,
		"tag":         tag,
	})
}

// GetPostBySlug godoc
// @Summary Fetch a post by slug
// @Tags posts
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} map[string]models.PostDetailResponse
// @Failure 404 {object} map[string]string
// @Router /post/slug/{slug} [get]
func (pc *PostController) GetPostBySlug(c *gin.Context) {
	post, err := pc.postService.GetPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// GetPost godoc
// @Summary Fetch a post with its likes and comments
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]models.PostDetailResponse
// @Failure 404 {object} map[string]string
// @Router /post/post/{id} [get]
func (pc *PostController) GetPost(c *gin.Context) {
	id, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	post, err := pc.postService.GetPost(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// MyPosts godoc
// @Summary The caller's posts, drafts included
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param draft query bool false "true for drafts only, false for published only"
// @Success 200 {object} models.PostPage
// @Router /post/user [get]
func (pc *PostController) MyPosts(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	page, err := pc.postService.ListUserPosts(c.Request.Context(), id, queryBool(c, "draft"), pagination(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// UserPosts godoc
// @Summary Published posts of one author
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param userId path int true "Author ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.PostPage
// @Router /post/user/{userId} [get]
func (pc *PostController) UserPosts(c *gin.Context) {
	authorID, ok := idParam(c, "userId", "user")
	if !ok {
		return
	}

	page, err := pc.postService.ListPostsByAuthor(c.Request.Context(), authorID, pagination(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// CreatePost godoc
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param body body models.CreatePostRequest true "Post"
// @Success 201 {object} map[string]models.PostResponse
// @Failure 400 {object} map[string]string
// @Router /post/create-post [post]
func (pc *PostController) CreatePost(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req models.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := pc.postService.CreatePost(c.Request.Context(), id, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// UpdatePost godoc
// @Summary Update one of the caller's posts
// @Tags posts
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Param body body models.UpdatePostRequest true "Changed fields"
// @Success 200 {object} map[string]models.PostDetailResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /post/update-post/{id} [put]
func (pc *PostController) UpdatePost(c *gin.Context) {
	requester, ok := userID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	var req models.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := pc.postService.UpdatePost(c.Request.Context(), postID, requester, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost godoc
// @Summary Delete one of the caller's posts
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /post/delete-post/{id} [delete]
func (pc *PostController) DeletePost(c *gin.Context) {
	requester, ok := userID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	if err := pc.postService.DeletePost(c.Request.Context(), postID, requester); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// ToggleLike godoc
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /post/like/{id} [post]
func (pc *PostController) ToggleLike(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	result, err := pc.postService.ToggleLike(c.Request.Context(), postID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	message := "Post unliked"
	if result.Liked {
		message = "Post liked"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "likes": result.Likes, "liked": result.Liked})
}

// AddComment godoc
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Param body body models.CommentRequest true "Comment"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /post/comment/{id} [post]
func (pc *PostController) AddComment(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	var req models.CommentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := pc.postService.AddComment(c.Request.Context(), postID, id, req.Text)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Comment added successfully",
		"comment":       result.Comment,
		"totalComments": result.TotalComments,
	})
}

// DeleteComment godoc
// @Summary Delete a comment as its writer or the post's author
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Param commentId path string true "Comment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /post/comment/{id}/{commentId} [delete]
func (pc *PostController) DeleteComment(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	total, err := pc.postService.DeleteComment(c.Request.Context(), postID, c.Param("commentId"), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully", "totalComments": total})
}

// IncrementViews godoc
// @Summary Count a view
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]int64
// @Router /post/view/{id} [post]
func (pc *PostController) IncrementViews(c *gin.Context) {
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	views, err := pc.postService.IncrementViews(c.Request.Context(), postID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"views": views})
}

// ToggleFeatured godoc
// @Summary Feature or unfeature a post
// @Tags posts
// @Produce json
// @Security CookieAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Router /post/featured/{id} [patch]
func (pc *PostController) ToggleFeatured(c *gin.Context) {
	postID, ok := idParam(c, "id", "post")
	if !ok {
		return
	}

	featured, err := pc.postService.ToggleFeatured(c.Request.Context(), postID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	message := "Post unfeatured successfully"
	if featured {
		message = "Post featured successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "isFeatured": featured})
}
