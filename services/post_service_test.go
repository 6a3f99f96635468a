package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"blogapi/cache"
	"blogapi/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_DerivesFieldsAndDefaults(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")

	content := strings.Repeat("word ", 450)
	post := f.createPost(t, author.ID, models.CreatePostRequest{
		Title:   "  Hello, World!  ",
		Content: content,
		Tags:    []string{" Go ", "", "WEB"},
	})

	assert.Equal(t, "Hello, World!", post.Title)
	require.NotNil(t, post.Slug)
	assert.Equal(t, "hello-world", *post.Slug)
	assert.Equal(t, 3, post.ReadTime)
	assert.True(t, strings.HasSuffix(post.Excerpt, "..."))
	assert.Len(t, []rune(post.Excerpt), models.ExcerptLength+3)
	assert.Equal(t, []string{"go", "web"}, post.Tags)
	assert.Equal(t, models.CategoryOther, post.Category)
	assert.True(t, post.IsPublished)
	assert.False(t, post.IsFeatured)
	assert.Zero(t, post.Views)
	require.NotNil(t, post.Author)
	assert.Equal(t, "writer", post.Author.Username)
	assert.Nil(t, post.Image)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	ctx := context.Background()

	_, err := f.posts.CreatePost(ctx, author.ID, &models.CreatePostRequest{Title: "   ", Content: "body"})
	assertKind(t, err, models.KindValidation)

	_, err = f.posts.CreatePost(ctx, author.ID, &models.CreatePostRequest{Title: strings.Repeat("x", 201), Content: "body"})
	assertKind(t, err, models.KindValidation)

	_, err = f.posts.CreatePost(ctx, author.ID, &models.CreatePostRequest{Title: "t", Content: "body", Category: "sports"})
	assertKind(t, err, models.KindValidation)

	_, err = f.posts.CreatePost(ctx, 4242, &models.CreatePostRequest{Title: "t", Content: "body"})
	assertKind(t, err, models.KindNotFound)
}

func TestCreatePost_SlugCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")

	first := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Same Title"})
	second := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Same Title"})
	third := f.createPost(t, author.ID, models.CreatePostRequest{Title: "same title!"})

	assert.Equal(t, "same-title", *first.Slug)
	assert.Equal(t, "same-title-2", *second.Slug)
	assert.Equal(t, "same-title-3", *third.Slug)
}

func TestCreatePost_UnsluggableTitleLeavesSlugEmpty(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")

	a := f.createPost(t, author.ID, models.CreatePostRequest{Title: "¿¿¿"})
	b := f.createPost(t, author.ID, models.CreatePostRequest{Title: "!!!"})

	assert.Nil(t, a.Slug)
	assert.Nil(t, b.Slug)
}

func TestGetPostAndBySlug(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	reader := f.signup(t, "reader")
	ctx := context.Background()

	created := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Deep Dive", Tags: []string{"go"}})
	_, err := f.posts.ToggleLike(ctx, created.ID, reader.ID)
	require.NoError(t, err)
	_, err = f.posts.AddComment(ctx, created.ID, reader.ID, "Great read")
	require.NoError(t, err)

	got, err := f.posts.GetPost(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deep Dive", got.Title)
	assert.Equal(t, int64(1), got.LikeCount)
	assert.Equal(t, int64(1), got.CommentCount)
	require.Len(t, got.Likes, 1)
	assert.Equal(t, "reader", got.Likes[0].Username)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Great read", got.Comments[0].Text)
	assert.Equal(t, "reader", got.Comments[0].User.Username)

	bySlug, err := f.posts.GetPostBySlug(ctx, "deep-dive")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	_, err = f.posts.GetPost(ctx, 9999)
	assertKind(t, err, models.KindNotFound)

	_, err = f.posts.GetPostBySlug(ctx, "missing")
	assertKind(t, err, models.KindNotFound)
}

func TestGetPost_EmptyListsStayInPayload(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	ctx := context.Background()

	created := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Quiet Post"})

	got, err := f.posts.GetPost(ctx, created.ID)
	require.NoError(t, err)
	raw, err := json.Marshal(got)
	require.NoError(t, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.JSONEq(t, `[]`, string(body["likes"]))
	assert.JSONEq(t, `[]`, string(body["comments"]))
	assert.JSONEq(t, `"Quiet Post"`, string(body["title"]))

	listed, err := json.Marshal(created)
	require.NoError(t, err)
	assert.NotContains(t, string(listed), `"likes"`)
	assert.NotContains(t, string(listed), `"comments"`)
}

func TestListPosts_PaginationShape(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	for i := 1; i <= 25; i++ {
		f.createPost(t, author.ID, models.CreatePostRequest{Title: fmt.Sprintf("Post %02d", i)})
	}
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Draft", IsPublished: boolPtr(false)})
	ctx := context.Background()

	page, err := f.posts.ListPosts(ctx, ListFilter{}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, "Post 25", page.Posts[0].Title)

	last, err := f.posts.ListPosts(ctx, ListFilter{}, DefaultPagination(3, 10))
	require.NoError(t, err)
	assert.Len(t, last.Posts, 5)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)
	assert.Equal(t, "Post 01", last.Posts[4].Title)

	beyond, err := f.posts.ListPosts(ctx, ListFilter{}, DefaultPagination(9, 10))
	require.NoError(t, err)
	assert.Empty(t, beyond.Posts)
	assert.NotNil(t, beyond.Posts)
	assert.Equal(t, int64(25), beyond.Total)
}

func TestListPosts_PagesAreDisjointAndComplete(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	for i := 0; i < 7; i++ {
		f.createPost(t, author.ID, models.CreatePostRequest{Title: fmt.Sprintf("P%d", i)})
	}

	seen := map[uint]bool{}
	for page := 1; page <= 3; page++ {
		got, err := f.posts.ListPosts(context.Background(), ListFilter{Sort: SortMostViewed}, DefaultPagination(page, 3))
		require.NoError(t, err)
		for _, p := range got.Posts {
			assert.False(t, seen[p.ID], "post %d returned twice", p.ID)
			seen[p.ID] = true
		}
	}
	assert.Len(t, seen, 7)
}

func TestListPosts_Filters(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	ctx := context.Background()

	travel := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Lisbon Trip", Category: "travel", Tags: []string{"europe"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Go Generics", Category: "technology", Tags: []string{"go"}})
	_, err := f.posts.ToggleFeatured(ctx, travel.ID)
	require.NoError(t, err)

	byCategory, err := f.posts.ListPosts(ctx, ListFilter{Category: "travel"}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Lisbon Trip"}, titles(byCategory.Posts))

	all, err := f.posts.ListPosts(ctx, ListFilter{Category: "all"}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	byTag, err := f.posts.ListPosts(ctx, ListFilter{Tag: "GO"}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go Generics"}, titles(byTag.Posts))

	featured, err := f.posts.ListPosts(ctx, ListFilter{Featured: true}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Lisbon Trip"}, titles(featured.Posts))

	search, err := f.posts.ListPosts(ctx, ListFilter{Search: "GENERICS"}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go Generics"}, titles(search.Posts))

	featuredFirst, err := f.posts.ListPosts(ctx, ListFilter{Sort: SortFeatured}, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, "Lisbon Trip", featuredFirst.Posts[0].Title)
}

func TestListPosts_SortOrders(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	fan := f.signup(t, "fan")
	ctx := context.Background()

	a := f.createPost(t, author.ID, models.CreatePostRequest{Title: "A"})
	b := f.createPost(t, author.ID, models.CreatePostRequest{Title: "B"})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "C"})

	for i := 0; i < 3; i++ {
		_, err := f.posts.IncrementViews(ctx, b.ID)
		require.NoError(t, err)
	}
	_, err := f.posts.ToggleLike(ctx, a.ID, fan.ID)
	require.NoError(t, err)

	cases := map[SortKey][]string{
		SortNewest:     {"C", "B", "A"},
		SortOldest:     {"A", "B", "C"},
		SortMostViewed: {"B", "C", "A"},
		SortMostLiked:  {"A", "C", "B"},
	}
	for sort, want := range cases {
		t.Run(string(sort), func(t *testing.T) {
			page, err := f.posts.ListPosts(ctx, ListFilter{Sort: sort}, DefaultPagination(1, 10))
			require.NoError(t, err)
			assert.Equal(t, want, titles(page.Posts))
		})
	}
}

func TestListUserPosts_DraftFilter(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	other := f.signup(t, "other")
	ctx := context.Background()

	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Live"})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Draft", IsPublished: boolPtr(false)})
	f.createPost(t, other.ID, models.CreatePostRequest{Title: "Not mine"})

	all, err := f.posts.ListUserPosts(ctx, author.ID, nil, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Live", "Draft"}, titles(all.Posts))

	drafts, err := f.posts.ListUserPosts(ctx, author.ID, boolPtr(true), DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, titles(drafts.Posts))

	published, err := f.posts.ListUserPosts(ctx, author.ID, boolPtr(false), DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Live"}, titles(published.Posts))

	public, err := f.posts.ListPostsByAuthor(ctx, author.ID, DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Live"}, titles(public.Posts))
}

func TestSearchPosts(t *testing.T) {
	f := newFixture(t, nil)
	grace := f.signup(t, "grace")
	linus := f.signup(t, "linus")
	ctx := context.Background()

	f.createPost(t, grace.ID, models.CreatePostRequest{Title: "Compilers", Content: "Writing a COBOL compiler", Tags: []string{"history"}})
	f.createPost(t, linus.ID, models.CreatePostRequest{Title: "Kernels", Content: "100% C code", Tags: []string{"c", "systems"}})
	f.createPost(t, linus.ID, models.CreatePostRequest{Title: "Hidden compiler", IsPublished: boolPtr(false)})

	tests := []struct {
		name   string
		params SearchParams
		want   []string
	}{
		{name: "content match is case insensitive", params: SearchParams{Query: "cobol"}, want: []string{"Compilers"}},
		{name: "tag substring match", params: SearchParams{Query: "syst"}, want: []string{"Kernels"}},
		{name: "wildcards are literal", params: SearchParams{Query: "100%"}, want: []string{"Kernels"}},
		{name: "underscore is literal", params: SearchParams{Query: "_"}, want: []string{}},
		{name: "author filter", params: SearchParams{Author: "GRA"}, want: []string{"Compilers"}},
		{name: "author without match is empty", params: SearchParams{Author: "nobody"}, want: []string{}},
		{name: "tag filter", params: SearchParams{Tag: "c"}, want: []string{"Kernels"}},
		{name: "drafts are never found", params: SearchParams{Query: "hidden"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.posts.SearchPosts(ctx, tt.params, DefaultPagination(1, 10))
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(page.Posts))
			assert.Equal(t, int64(len(tt.want)), page.Total)
		})
	}
}

func TestSearchPosts_FoldsNonASCIICase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	zoe, err := f.users.Signup(ctx, &models.SignupRequest{Username: "Zoë", Email: "zoe@example.com", Password: "password123"})
	require.NoError(t, err)

	f.createPost(t, zoe.ID, models.CreatePostRequest{Title: "École d'été", Content: "ÜBER alles"})

	for _, params := range []SearchParams{
		{Query: "école"},
		{Query: "ÉCOLE"},
		{Query: "über"},
		{Author: "ZOË"},
	} {
		page, err := f.posts.SearchPosts(ctx, params, DefaultPagination(1, 10))
		require.NoError(t, err)
		assert.Equal(t, []string{"École d'été"}, titles(page.Posts), "%+v", params)
	}
}

func TestPostsByTag(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	ctx := context.Background()

	f.createPost(t, author.ID, models.CreatePostRequest{Title: "One", Tags: []string{"go", "testing"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Two", Tags: []string{"go"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Three", Tags: []string{"golang"}})

	page, err := f.posts.PostsByTag(ctx, "Go", DefaultPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Two", "One"}, titles(page.Posts))

	_, err = f.posts.PostsByTag(ctx, "  ", DefaultPagination(1, 10))
	assertKind(t, err, models.KindValidation)
}

func TestAllTags_CountsPublishedPostsOnly(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	ctx := context.Background()

	f.createPost(t, author.ID, models.CreatePostRequest{Title: "1", Tags: []string{"go", "web"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "2", Tags: []string{"go", "api"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "3", Tags: []string{"go"}})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "draft", Tags: []string{"secret", "go"}, IsPublished: boolPtr(false)})

	tags, err := f.posts.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{
		{Name: "go", Count: 3},
		{Name: "api", Count: 1},
		{Name: "web", Count: 1},
	}, tags)
}

func TestAllTags_EmptyStore(t *testing.T) {
	f := newFixture(t, nil)

	tags, err := f.posts.AllTags(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestPopularPosts(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	fan := f.signup(t, "fan")
	ctx := context.Background()

	old := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Old but viewed"})
	viewed := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Viewed"})
	liked := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Liked"})
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Quiet"})

	for i := 0; i < 5; i++ {
		_, err := f.posts.IncrementViews(ctx, old.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := f.posts.IncrementViews(ctx, viewed.ID)
		require.NoError(t, err)
		_, err = f.posts.IncrementViews(ctx, liked.ID)
		require.NoError(t, err)
	}
	_, err := f.posts.ToggleLike(ctx, liked.ID, fan.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().AddDate(0, -2, 0)).Error)

	all, err := f.posts.PopularPosts(ctx, 3, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"Old but viewed", "Liked", "Viewed"}, titles(all))

	month, err := f.posts.PopularPosts(ctx, 0, "month")
	require.NoError(t, err)
	assert.Equal(t, []string{"Liked", "Viewed", "Quiet"}, titles(month))

	year, err := f.posts.PopularPosts(ctx, 1, "year")
	require.NoError(t, err)
	assert.Equal(t, []string{"Old but viewed"}, titles(year))
}

func TestAllTags_UsesCacheAndInvalidatesOnWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, cache.NewWithClient(client))
	author := f.signup(t, "writer")
	ctx := context.Background()

	f.createPost(t, author.ID, models.CreatePostRequest{Title: "1", Tags: []string{"go"}})

	tags, err := f.posts.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Name: "go", Count: 1}}, tags)
	assert.True(t, mr.Exists(cache.TagsKey()))

	// a write behind the service's back is invisible until the entry is invalidated
	require.NoError(t, f.db.Create(&models.PostTag{PostID: 1, Position: 1, Name: "sneaky"}).Error)
	tags, err = f.posts.AllTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	f.createPost(t, author.ID, models.CreatePostRequest{Title: "2", Tags: []string{"go"}})
	assert.False(t, mr.Exists(cache.TagsKey()))

	tags, err = f.posts.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TagCount{{Name: "go", Count: 2}, {Name: "sneaky", Count: 1}}, tags)
}

func TestPopularPosts_CachedPerTimeframeAndLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, cache.NewWithClient(client))
	author := f.signup(t, "writer")
	fan := f.signup(t, "fan")
	ctx := context.Background()

	post := f.createPost(t, author.ID, models.CreatePostRequest{Title: "Hot"})

	_, err := f.posts.PopularPosts(ctx, 5, "week")
	require.NoError(t, err)
	_, err = f.posts.PopularPosts(ctx, 5, "bogus")
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.PopularKey("week", 5)))
	assert.True(t, mr.Exists(cache.PopularKey("all", 5)))

	_, err = f.posts.ToggleLike(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PopularKey("week", 5)))
	assert.False(t, mr.Exists(cache.PopularKey("all", 5)))
}

func TestPaginationClamping(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 10}, DefaultPagination(0, 0))
	assert.Equal(t, Pagination{Page: 1, Limit: 10}, DefaultPagination(-3, -1))
	assert.Equal(t, Pagination{Page: 2, Limit: 100}, DefaultPagination(2, 500))
	assert.Equal(t, Pagination{Page: 1, Limit: 5}, NewPagination(1, 0, 5))
	assert.Equal(t, 20, Pagination{Page: 3, Limit: 10}.Offset())

	huge := DefaultPagination(math.MaxInt64, 100)
	assert.Equal(t, maxPage, huge.Page)
	assert.Positive(t, huge.Offset())
	assert.LessOrEqual(t, huge.Offset(), math.MaxInt32)
}

func TestListPosts_HugePageIsEmptyNotFirst(t *testing.T) {
	f := newFixture(t, nil)
	author := f.signup(t, "writer")
	f.createPost(t, author.ID, models.CreatePostRequest{Title: "Only"})

	page, err := f.posts.ListPosts(context.Background(), ListFilter{}, DefaultPagination(math.MaxInt64, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, maxPage, page.CurrentPage)
	assert.Equal(t, int64(1), page.Total)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortMostLiked, ParseSort("mostLiked"))
	assert.Equal(t, SortNewest, ParseSort(""))
	assert.Equal(t, SortNewest, ParseSort("popular"))
	assert.Equal(t, SortNewest, ParseSort("DROP TABLE"))
}
