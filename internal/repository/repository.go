package repository

import (
	"context"
	"sort"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/psds-microservice/issue-tracker/internal/model"
)

// Criteria selects issues by exact match. Keys are wire field names
// (model.FieldProject, model.FieldID, ...); values are passed as received.
type Criteria map[string]string

// Changes is an update set keyed by wire field name. String fields carry
// string values, model.FieldOpen a bool and model.FieldUpdatedOn a time.Time.
type Changes map[string]any

// Repository is the storage collaborator of the issue service.
type Repository interface {
	// Find returns every issue matching all criteria, oldest first.
	Find(ctx context.Context, c Criteria) ([]model.Issue, error)
	// Insert persists the issue, assigning ID when it is empty.
	Insert(ctx context.Context, issue *model.Issue) error
	// UpdateByID applies changes and reports how many records were modified (0 or 1).
	UpdateByID(ctx context.Context, id string, ch Changes) (int64, error)
	// DeleteByID removes the issue and reports how many records were deleted (0 or 1).
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// Store is a Repository with a lifecycle, as opened by Open.
type Store interface {
	Repository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a fresh 24-character hex identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// column maps a wire field name onto its SQL column.
func column(field string) string {
	if field == model.FieldID {
		return "id"
	}
	return field
}

// sortedKeys keeps generated SQL stable across calls.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseOpen coerces a verbatim open filter to the stored boolean using the
// document store's casting set: true, 1, yes and false, 0, no. ok is false
// when the value cannot match any record.
func parseOpen(v string) (open, ok bool) {
	switch v {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// isFilterable reports whether a criteria key names a stored field.
func isFilterable(field string) bool {
	switch field {
	case model.FieldID, model.FieldProject, model.FieldIssueTitle, model.FieldIssueText,
		model.FieldCreatedBy, model.FieldAssignedTo, model.FieldStatusText, model.FieldOpen:
		return true
	}
	return false
}

// applyChanges copies an update set onto an in-memory issue.
func applyChanges(issue *model.Issue, ch Changes) {
	for field, v := range ch {
		switch field {
		case model.FieldIssueTitle:
			issue.IssueTitle = cast.ToString(v)
		case model.FieldIssueText:
			issue.IssueText = cast.ToString(v)
		case model.FieldCreatedBy:
			issue.CreatedBy = cast.ToString(v)
		case model.FieldAssignedTo:
			issue.AssignedTo = cast.ToString(v)
		case model.FieldStatusText:
			issue.StatusText = cast.ToString(v)
		case model.FieldOpen:
			issue.Open = cast.ToBool(v)
		case model.FieldUpdatedOn:
			issue.UpdatedOn = cast.ToTime(v)
		}
	}
}
