package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinmark/pinmark/internal/bookmark"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()

	r, err := Open("file::memory:")
	require.NoError(t, err, "opening in-memory database")

	require.NoError(t, r.Migrate(context.Background()), "migrating test database")

	t.Cleanup(r.Close)

	return r
}

func testBookmark(n int) *bookmark.Bookmark {
	return &bookmark.Bookmark{
		ID:          fmt.Sprintf("00000000-0000-0000-0000-%012d", n),
		URL:         fmt.Sprintf("https://example.com/%d", n),
		Title:       fmt.Sprintf("Example %d", n),
		Description: "a test bookmark",
		Tags:        []string{"golang", "testing"},
		CheckedAt:   "2024-06-01T12:00:00Z",
		VisitCount:  0,
		StatusCode:  200,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	// second run must neither fail nor touch existing data
	require.NoError(t, r.Migrate(context.Background()))

	got, err := r.Bookmarks(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.URL, got[0].URL)
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, b.URL, got[0].URL)
	assert.Equal(t, b.Title, got[0].Title)
	assert.Equal(t, b.Description, got[0].Description)
	assert.Equal(t, b.CheckedAt, got[0].CheckedAt)
	assert.Equal(t, b.VisitCount, got[0].VisitCount)
	assert.Equal(t, b.StatusCode, got[0].StatusCode)
	assert.ElementsMatch(t, b.Tags, got[0].Tags)
}

func TestGetAllAndMissingIDs(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	bs := []*bookmark.Bookmark{testBookmark(1), testBookmark(2), testBookmark(3)}
	require.NoError(t, r.Insert(context.Background(), bs))

	all, err := r.Bookmarks(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// unknown ids are omitted, not an error
	got, err := r.Bookmarks(context.Background(), []string{bs[0].ID, "no-such-id"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bs[0].ID, got[0].ID)
}

func TestTagsReturnedSorted(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	b.Tags = []string{"zulu", "alpha", "mike"}
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, got[0].Tags)
}

func TestPartialUpdateIsolation(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	edit := &bookmark.Bookmark{ID: b.ID, Description: "rewritten"}
	require.NoError(t, r.Update(context.Background(), []*bookmark.Bookmark{edit},
		[]string{bookmark.FieldDescription}))

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "rewritten", got[0].Description)
	// everything else keeps its prior value
	assert.Equal(t, b.URL, got[0].URL)
	assert.Equal(t, b.Title, got[0].Title)
	assert.Equal(t, b.CheckedAt, got[0].CheckedAt)
	assert.Equal(t, b.VisitCount, got[0].VisitCount)
	assert.ElementsMatch(t, b.Tags, got[0].Tags)
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	err := r.Update(context.Background(), []*bookmark.Bookmark{b}, []string{"id; DROP TABLE bookmark"})
	require.ErrorIs(t, err, ErrInvalidField)
}

func tagRowIDs(t *testing.T, r *SQLite, bookmarkID string) []int64 {
	t.Helper()

	var ids []int64
	require.NoError(t, r.DB.Select(&ids,
		"SELECT rowid FROM tag WHERE bookmark_id = ? ORDER BY rowid", bookmarkID))

	return ids
}

func TestTagReconciliation(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	// a second bookmark keeps b1's tag rowids away from the table
	// maximum, so a delete+reinsert of b1's tags would show up as new
	// rowids.
	b1 := testBookmark(1)
	b2 := testBookmark(2)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b1, b2}))

	before := tagRowIDs(t, r, b1.ID)
	require.NotEmpty(t, before)

	// identical set, different order: zero tag-table writes
	same := &bookmark.Bookmark{ID: b1.ID, Tags: []string{"testing", "golang"}}
	require.NoError(t, r.Update(context.Background(), []*bookmark.Bookmark{same},
		[]string{bookmark.FieldTags}))
	assert.Equal(t, before, tagRowIDs(t, r, b1.ID), "identical tag set must not be rewritten")

	// different set: replaced wholesale
	changed := &bookmark.Bookmark{ID: b1.ID, Tags: []string{"golang", "sqlite"}}
	require.NoError(t, r.Update(context.Background(), []*bookmark.Bookmark{changed},
		[]string{bookmark.FieldTags}))

	got, err := r.Bookmarks(context.Background(), []string{b1.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"golang", "sqlite"}, got[0].Tags)
	assert.NotEqual(t, before, tagRowIDs(t, r, b1.ID))
}

func TestTagReconciliationFromEmpty(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	b.Tags = nil
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Tags)

	edit := &bookmark.Bookmark{ID: b.ID, Tags: []string{"fresh"}}
	require.NoError(t, r.Update(context.Background(), []*bookmark.Bookmark{edit},
		[]string{bookmark.FieldTags}))

	got, err = r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got[0].Tags)
}

func TestUpdateUnknownIDWritesNoTagRows(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))

	// the ghost must not fail the batch or orphan tag rows; the known
	// bookmark is still updated.
	ghost := &bookmark.Bookmark{ID: "no-such-id", Description: "x", Tags: []string{"t"}}
	edit := &bookmark.Bookmark{ID: b.ID, Description: "y", Tags: []string{"kept"}}
	require.NoError(t, r.Update(context.Background(), []*bookmark.Bookmark{ghost, edit},
		[]string{bookmark.FieldDescription, bookmark.FieldTags}))

	var count int
	require.NoError(t, r.DB.Get(&count,
		"SELECT COUNT(*) FROM tag WHERE bookmark_id = ?", ghost.ID))
	assert.Zero(t, count, "no tag rows without a bookmark row")

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].Description)
	assert.Equal(t, []string{"kept"}, got[0].Tags)
}

func TestDeleteIsPermanentAndIdempotent(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b := testBookmark(1)
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{b}))
	require.NoError(t, r.Delete(context.Background(), []string{b.ID}))

	got, err := r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	// no residual tag rows
	var count int
	require.NoError(t, r.DB.Get(&count,
		"SELECT COUNT(*) FROM tag WHERE bookmark_id = ?", b.ID))
	assert.Zero(t, count)

	// deleting again is a no-op
	require.NoError(t, r.Delete(context.Background(), []string{b.ID}))

	// re-adding under the same id succeeds with a clean tag slate
	fresh := testBookmark(1)
	fresh.Tags = []string{"reborn"}
	require.NoError(t, r.Insert(context.Background(), []*bookmark.Bookmark{fresh}))

	got, err = r.Bookmarks(context.Background(), []string{b.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"reborn"}, got[0].Tags)
}

func TestInsertBatchIsAtomic(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)

	b1 := testBookmark(1)
	dup := testBookmark(1) // same primary key, insert must fail

	err := r.Insert(context.Background(), []*bookmark.Bookmark{b1, dup})
	require.Error(t, err)

	got, err := r.Bookmarks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch must leave no rows behind")
}

func TestDeleteWithoutIDs(t *testing.T) {
	t.Parallel()

	r := setupTestDB(t)
	require.ErrorIs(t, r.Delete(context.Background(), nil), bookmark.ErrIDNotProvided)
}
