package models

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryTechnology    Category = "technology"
	CategoryLifestyle     Category = "lifestyle"
	CategoryTravel        Category = "travel"
	CategoryFood          Category = "food"
	CategoryHealth        Category = "health"
	CategoryEducation     Category = "education"
	CategoryBusiness      Category = "business"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

var Categories = []Category{
	CategoryTechnology, CategoryLifestyle, CategoryTravel, CategoryFood,
	CategoryHealth, CategoryEducation, CategoryBusiness, CategoryEntertainment,
	CategoryOther,
}

func IsValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func categoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

const (
	ExcerptLength   = 250
	WordsPerMinute  = 200
	MaxSlugLength   = 100
	MaxCommentRunes = 1000
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugDashes       = regexp.MustCompile(`-+`)
)

type Post struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	AuthorID    uint       `json:"authorId" gorm:"not null;index:idx_posts_author_created,priority:1"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Content     string     `json:"content" gorm:"type:text;not null"`
	Excerpt     string     `json:"excerpt" gorm:"size:300"`
	Image       *string    `json:"image"`
	Category    Category   `json:"category" gorm:"size:32;not null;index"`
	IsPublished bool       `json:"isPublished" gorm:"not null;index:idx_posts_published_created,priority:1"`
	IsFeatured  bool       `json:"isFeatured" gorm:"not null"`
	Views       int64      `json:"views" gorm:"not null"`
	ReadTime    int        `json:"readTime" gorm:"not null"`
	Slug        *string    `json:"slug" gorm:"size:100;uniqueIndex"`
	SearchText  string     `json:"-" gorm:"type:text;not null;default:''"`
	Tags        []PostTag  `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Likes       []PostLike `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Comments    []Comment  `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index:idx_posts_author_created,priority:2;index:idx_posts_published_created,priority:2"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type PostTag struct {
	PostID   uint   `gorm:"primaryKey;autoIncrement:false"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"size:64;not null;index"`
}

type PostLike struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	PostID    uint      `json:"postId" gorm:"not null;index"`
	UserID    uint      `json:"userId" gorm:"not null"`
	Text      string    `json:"text" gorm:"size:1000;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps the derived columns in step with title and content.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.Derive()
	return nil
}

func (p *Post) Derive() {
	if p.Excerpt == "" && p.Content != "" {
		p.Excerpt = MakeExcerpt(p.Content)
	}
	p.ReadTime = ReadTime(p.Content)
	p.SearchText = SearchKey(p.Title, p.Content)
	if p.Slug == nil && p.Title != "" {
		if slug := Slugify(p.Title); slug != "" {
			p.Slug = &slug
		}
	}
}

func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

func NewPostTags(names []string) []PostTag {
	tags := make([]PostTag, len(names))
	for i, name := range names {
		tags[i] = PostTag{Position: i, Name: name}
	}
	return tags
}

func MakeExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= ExcerptLength {
		return content
	}
	return string([]rune(content)[:ExcerptLength]) + "..."
}

func ReadTime(content string) int {
	words := len(strings.Fields(content))
	return int(math.Ceil(float64(words) / WordsPerMinute))
}

func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	return slug
}

// SearchKey is the lowercased text that substring search runs against.
// Folding happens here rather than in SQL because SQLite's LOWER only
// handles ASCII.
func SearchKey(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "\n"))
}

// SlugWithSuffix appends -n to base while staying within MaxSlugLength.
func SlugWithSuffix(base string, n int) string {
	suffix := fmt.Sprintf("-%d", n)
	if len(base)+len(suffix) > MaxSlugLength {
		base = base[:MaxSlugLength-len(suffix)]
	}
	return base + suffix
}

type CreatePostRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Content     string   `json:"content" validate:"required"`
	Excerpt     string   `json:"excerpt" validate:"max=300"`
	Tags        []string `json:"tags" validate:"dive,max=64"`
	Image       string   `json:"image" validate:"max=2048"`
	Category    string   `json:"category" validate:"category"`
	IsPublished *bool    `json:"isPublished"`
}

func (r *CreatePostRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	r.Excerpt = strings.TrimSpace(r.Excerpt)
	r.Image = strings.TrimSpace(r.Image)
	r.Tags = NormalizeTags(r.Tags)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	if r.Category == "" {
		r.Category = string(CategoryOther)
	}
}

// UpdatePostRequest carries only the fields the author sent; nil keeps the stored value.
type UpdatePostRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=200"`
	Content     *string  `json:"content"`
	Excerpt     *string  `json:"excerpt" validate:"omitempty,max=300"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=64"`
	Image       *string  `json:"image" validate:"omitempty,max=2048"`
	Category    *string  `json:"category" validate:"omitempty,category"`
	IsPublished *bool    `json:"isPublished"`
}

func (r *UpdatePostRequest) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(r.Title)
	trim(r.Content)
	trim(r.Excerpt)
	trim(r.Image)
	if r.Category != nil {
		*r.Category = strings.ToLower(strings.TrimSpace(*r.Category))
	}
	if r.Tags != nil {
		r.Tags = NormalizeTags(r.Tags)
	}
}

type CommentRequest struct {
	Text string `json:"text"`
}

// NormalizeTags lowercases and trims each tag and drops empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

type CommentResponse struct {
	ID        string       `json:"id"`
	User      *UserSummary `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
}

type PostResponse struct {
	ID           uint         `json:"id"`
	Author       *UserSummary `json:"author"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Excerpt      string       `json:"excerpt"`
	Tags         []string     `json:"tags"`
	Image        *string      `json:"image"`
	Category     Category     `json:"category"`
	IsPublished  bool         `json:"isPublished"`
	IsFeatured   bool         `json:"isFeatured"`
	Views        int64        `json:"views"`
	ReadTime     int          `json:"readTime"`
	Slug         *string      `json:"slug"`
	LikeCount    int64        `json:"likeCount"`
	CommentCount int64        `json:"commentCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PostDetailResponse is a single post with its likers and comments resolved.
// Both lists are always present, empty when there are none.
type PostDetailResponse struct {
	PostResponse
	Likes    []UserSummary     `json:"likes"`
	Comments []CommentResponse `json:"comments"`
}

type PostPage struct {
	Posts       []PostResponse `json:"posts"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Total       int64          `json:"total"`
	HasNext     bool           `json:"hasNext"`
	HasPrev     bool           `json:"hasPrev"`
}

type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type LikeResult struct {
	Likes int64 `json:"likes"`
	Liked bool  `json:"liked"`
}

type CommentResult struct {
	Comment       CommentResponse `json:"comment"`
	TotalComments int64           `json:"totalComments"`
}
