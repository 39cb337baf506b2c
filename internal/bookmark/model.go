// Package bookmark defines the bookmark entity and the request
// parameters shared by the service and HTTP layers.
package bookmark

import "slices"

// SentinelTag is applied whenever a bookmark would otherwise end up
// with an empty tag set.
const SentinelTag = "*unassigned"

// Updatable field names, as accepted by the store's partial updates.
const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldCheckedAt   = "checked_at"
	FieldLastVisitAt = "last_visit_at"
	FieldVisitCount  = "visit_count"
	FieldStatusCode  = "status_code"
)

// Bookmark represents one saved URL and its metadata.
//
// Datetime fields hold RFC 3339 strings; the empty string means the
// event never happened. JSON names are camelCased, the contract the
// frontend expects.
type Bookmark struct {
	ID          string   `db:"id"            json:"id"`
	URL         string   `db:"url"           json:"url"`
	Title       string   `db:"title"         json:"title"`
	Description string   `db:"description"   json:"description"`
	Tags        []string `db:"-"             json:"tags"`
	CheckedAt   string   `db:"checked_at"    json:"checkedDatetime"`
	LastVisitAt string   `db:"last_visit_at" json:"lastVisitDatetime"`
	VisitCount  int      `db:"visit_count"   json:"visitCount"`
	StatusCode  int      `db:"status_code"   json:"statusCode"`
}

// DefaultTags returns a fresh sentinel tag set.
func DefaultTags() []string {
	return []string{SentinelTag}
}

// NormalizeTags substitutes the sentinel set for an empty one and
// returns the tags sorted.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return DefaultTags()
	}

	out := slices.Clone(tags)
	slices.Sort(out)

	return out
}

// AddParam requests a new bookmark for a raw URL.
type AddParam struct {
	URL string `json:"url"`
}

// EditParam updates the user-editable fields of a bookmark.
type EditParam struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CheckParam requests a metadata re-fetch for an existing bookmark.
type CheckParam struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DeleteParam identifies a bookmark to delete.
type DeleteParam struct {
	ID string `json:"id"`
}

// VisitParam records a user visit. VisitCount carries the count as the
// caller last saw it, before the increment.
type VisitParam struct {
	ID         string `json:"id"`
	VisitCount int    `json:"visitCount"`
}
