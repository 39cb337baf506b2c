package db

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/pinmark/pinmark/internal/bookmark"
)

// tagSep joins tag names in the aggregation query. The unit separator
// cannot appear in a tag name.
const tagSep = "\x1f"

// columns that Update accepts. Field names are interpolated into SQL,
// so everything outside this set is rejected.
var updatableColumns = map[string]bool{
	bookmark.FieldURL:         true,
	bookmark.FieldTitle:       true,
	bookmark.FieldDescription: true,
	bookmark.FieldCheckedAt:   true,
	bookmark.FieldLastVisitAt: true,
	bookmark.FieldVisitCount:  true,
	bookmark.FieldStatusCode:  true,
}

const selectQuery = `
    SELECT
      b.*,
      COALESCE(t.names, '') AS tags
    FROM bookmark b
    LEFT JOIN (
      SELECT bookmark_id, GROUP_CONCAT(name, '` + tagSep + `') AS names
      FROM tag
      GROUP BY bookmark_id
    ) t ON b.id = t.bookmark_id`

// bookmarkRow carries the aggregated tag names next to the entity.
type bookmarkRow struct {
	bookmark.Bookmark
	RawTags string `db:"tags"`
}

// Bookmarks returns the bookmarks matching ids, or every bookmark when
// ids is empty. Unknown ids are silently omitted. Tags come back
// sorted; a bookmark without tag rows gets an empty slice.
func (r *SQLite) Bookmarks(ctx context.Context, ids []string) ([]*bookmark.Bookmark, error) {
	q := selectQuery
	args := []any{}

	if len(ids) > 0 {
		var err error

		q, args, err = sqlx.In(q+" WHERE b.id IN (?)", ids)
		if err != nil {
			return nil, fmt.Errorf("building select: %w", err)
		}

		q = r.DB.Rebind(q)
	}

	var rows []bookmarkRow
	if err := r.DB.SelectContext(ctx, &rows, q+" ORDER BY b.id ASC", args...); err != nil {
		return nil, fmt.Errorf("selecting bookmarks: %w", err)
	}

	bs := make([]*bookmark.Bookmark, 0, len(rows))

	for i := range rows {
		b := rows[i].Bookmark
		b.Tags = splitTags(rows[i].RawTags)
		bs = append(bs, &b)
	}

	return bs, nil
}

// Insert writes the batch in a single transaction: one bookmark row
// each plus one tag row per (tag, id) pair. Either the whole batch
// becomes visible or none of it.
func (r *SQLite) Insert(ctx context.Context, bs []*bookmark.Bookmark) error {
	if len(bs) == 0 {
		return nil
	}

	slog.Debug("inserting bookmarks", "count", len(bs))

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, b := range bs {
			_, err := tx.NamedExecContext(ctx, `
        INSERT INTO bookmark (
          id, url, title, description,
          checked_at, last_visit_at, visit_count, status_code
        ) VALUES (
          :id, :url, :title, :description,
          :checked_at, :last_visit_at, :visit_count, :status_code
        )`, b)
			if err != nil {
				return fmt.Errorf("inserting %q: %w", b.URL, err)
			}

			if err := insertTags(ctx, tx, b.ID, b.Tags); err != nil {
				return err
			}
		}

		return nil
	})
}

// Update rewrites only the named fields of each bookmark, keyed by id.
// A "tags" field triggers per-bookmark tag reconciliation; the other
// names must be updatable columns. Rows for unknown ids simply match
// nothing.
func (r *SQLite) Update(ctx context.Context, bs []*bookmark.Bookmark, fields []string) error {
	if len(bs) == 0 {
		return nil
	}

	withTags := false
	cols := make([]string, 0, len(fields))

	for _, f := range fields {
		if f == bookmark.FieldTags {
			withTags = true
			continue
		}

		if !updatableColumns[f] {
			return fmt.Errorf("%w: %q", ErrInvalidField, f)
		}

		cols = append(cols, f)
	}

	if len(cols) == 0 && !withTags {
		return ErrNoFieldsToWrite
	}

	slog.Debug("updating bookmarks", "count", len(bs), "fields", fields)

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, b := range bs {
			if len(cols) > 0 {
				if err := updateColumns(ctx, tx, b, cols); err != nil {
					return err
				}
			}

			if withTags {
				if err := reconcileTags(ctx, tx, b); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Delete removes the bookmark rows and their tag rows for the given
// ids in one transaction. Deleting an unknown id is a no-op.
func (r *SQLite) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return bookmark.ErrIDNotProvided
	}

	slog.Debug("deleting bookmarks", "count", len(ids))

	queries := []string{
		"DELETE FROM tag WHERE bookmark_id IN (?)",
		"DELETE FROM bookmark WHERE id IN (?)",
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range queries {
			q, args, err := sqlx.In(q, ids)
			if err != nil {
				return fmt.Errorf("building delete: %w", err)
			}

			if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
				return fmt.Errorf("deleting: %w", err)
			}
		}

		return nil
	})
}

// updateColumns rewrites the given columns of one bookmark row.
func updateColumns(ctx context.Context, tx *sqlx.Tx, b *bookmark.Bookmark, cols []string) error {
	set := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)

	for _, c := range cols {
		set = append(set, c+" = ?")
		args = append(args, fieldValue(b, c))
	}

	args = append(args, b.ID)

	q := "UPDATE bookmark SET " + strings.Join(set, ", ") + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("updating %q: %w", b.ID, err)
	}

	return nil
}

// reconcileTags replaces the stored tag set only when it differs from
// the new one. Identical sets cause zero tag-table writes. An unknown
// bookmark id is a no-op, matching the column updates.
func reconcileTags(ctx context.Context, tx *sqlx.Tx, b *bookmark.Bookmark) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM bookmark WHERE id = ?)", b.ID); err != nil {
		return fmt.Errorf("checking bookmark %q: %w", b.ID, err)
	}

	if !exists {
		return nil
	}

	var existing []string
	if err := tx.SelectContext(ctx, &existing,
		"SELECT name FROM tag WHERE bookmark_id = ?", b.ID); err != nil {
		return fmt.Errorf("reading tags of %q: %w", b.ID, err)
	}

	if sameTagSet(existing, b.Tags) {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tag WHERE bookmark_id = ?", b.ID); err != nil {
		return fmt.Errorf("clearing tags of %q: %w", b.ID, err)
	}

	return insertTags(ctx, tx, b.ID, b.Tags)
}

func insertTags(ctx context.Context, tx *sqlx.Tx, id string, tags []string) error {
	for _, tag := range tags {
		if tag == "" {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tag (name, bookmark_id) VALUES (?, ?)", tag, id); err != nil {
			return fmt.Errorf("inserting tag %q for %q: %w", tag, id, err)
		}
	}

	return nil
}

func sameTagSet(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}

	other := make(map[string]bool, len(b))
	for _, t := range b {
		other[t] = true
	}

	if len(set) != len(other) {
		return false
	}

	for t := range set {
		if !other[t] {
			return false
		}
	}

	return true
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}

	tags := strings.Split(raw, tagSep)
	slices.Sort(tags)

	return tags
}

func fieldValue(b *bookmark.Bookmark, col string) any {
	switch col {
	case bookmark.FieldURL:
		return b.URL
	case bookmark.FieldTitle:
		return b.Title
	case bookmark.FieldDescription:
		return b.Description
	case bookmark.FieldCheckedAt:
		return b.CheckedAt
	case bookmark.FieldLastVisitAt:
		return b.LastVisitAt
	case bookmark.FieldVisitCount:
		return b.VisitCount
	case bookmark.FieldStatusCode:
		return b.StatusCode
	default:
		return nil
	}
}
