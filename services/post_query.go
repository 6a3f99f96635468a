package services

import (
	"math"
	"strings"
	"time"

	"blogapi/models"

	"gorm.io/gorm"
)

type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortOldest     SortKey = "oldest"
	SortMostViewed SortKey = "mostViewed"
	SortMostLiked  SortKey = "mostLiked"
	SortFeatured   SortKey = "featured"
	sortPopular    SortKey = "popular"
)

// ParseSort maps a client-supplied sort key; unknown keys sort newest first.
func ParseSort(raw string) SortKey {
	switch SortKey(raw) {
	case SortOldest, SortMostViewed, SortMostLiked, SortFeatured:
		return SortKey(raw)
	default:
		return SortNewest
	}
}

const likeCountExpr = "(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns user input into a LIKE pattern matching it as a literal,
// lowercased substring.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// PostQuery is the filter and ordering shared by every post listing.
type PostQuery struct {
	PublishedOnly bool
	Published     *bool
	AuthorID      uint
	// FilterAuthors restricts results to AuthorIDs, matching nothing when it is empty.
	FilterAuthors bool
	AuthorIDs     []uint
	Category      string
	Tag           string
	FeaturedOnly  bool
	Search        string
	CreatedAfter  time.Time
	Sort          SortKey
}

func (pq PostQuery) apply(db *gorm.DB) *gorm.DB {
	q := db.Model(&models.Post{})

	if pq.PublishedOnly {
		q = q.Where("posts.is_published = ?", true)
	}
	if pq.Published != nil {
		q = q.Where("posts.is_published = ?", *pq.Published)
	}
	if pq.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", pq.AuthorID)
	}
	if pq.FilterAuthors {
		if len(pq.AuthorIDs) == 0 {
			q = q.Where("1 = 0")
		} else {
			q = q.Where("posts.author_id IN ?", pq.AuthorIDs)
		}
	}
	if category := strings.ToLower(strings.TrimSpace(pq.Category)); category != "" && category != "all" {
		q = q.Where("posts.category = ?", category)
	}
	if tag := strings.ToLower(strings.TrimSpace(pq.Tag)); tag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.name = ?)", tag)
	}
	if pq.FeaturedOnly {
		q = q.Where("posts.is_featured = ?", true)
	}
	if strings.TrimSpace(pq.Search) != "" {
		pattern := likePattern(pq.Search)
		q = q.Where(
			"(posts.search_text LIKE ? ESCAPE '\\' OR "+
				"EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.name LIKE ? ESCAPE '\\'))",
			pattern, pattern,
		)
	}
	if !pq.CreatedAfter.IsZero() {
		q = q.Where("posts.created_at >= ?", pq.CreatedAfter)
	}
	return q
}

func (pq PostQuery) order(q *gorm.DB) *gorm.DB {
	switch pq.Sort {
	case SortOldest:
		return q.Order("posts.created_at ASC").Order("posts.id ASC")
	case SortMostViewed:
		q = q.Order("posts.views DESC")
	case SortMostLiked:
		q = q.Order(likeCountExpr + " DESC")
	case SortFeatured:
		q = q.Order("posts.is_featured DESC")
	case sortPopular:
		q = q.Order("posts.views DESC").Order(likeCountExpr + " DESC")
	}
	return q.Order("posts.created_at DESC").Order("posts.id DESC")
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100

	// maxPage keeps Offset within int32 at the largest limit.
	maxPage = math.MaxInt32 / maxPageLimit
)

type Pagination struct {
	Page  int
	Limit int
}

// NewPagination clamps page to 1..maxPage and limit to 1..100, substituting
// defaultLimit when limit is not positive.
func NewPagination(page, limit, defaultLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func DefaultPagination(page, limit int) Pagination {
	return NewPagination(page, limit, defaultPageLimit)
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func newPostPage(posts []models.PostResponse, total int64, p Pagination) *models.PostPage {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return &models.PostPage{
		Posts:       posts,
		TotalPages:  totalPages,
		CurrentPage: p.Page,
		Total:       total,
		HasNext:     p.Page < totalPages,
		HasPrev:     p.Page > 1,
	}
}

// timeframeStart returns the lower created_at bound for a popularity window,
// or the zero time for "all" and unknown values.
func timeframeStart(timeframe string, now time.Time) time.Time {
	switch timeframe {
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	case "year":
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

func normalizeTimeframe(timeframe string) string {
	switch timeframe {
	case "week", "month", "year":
		return timeframe
	default:
		return "all"
	}
}
