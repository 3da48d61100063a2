package model

import (
	"encoding/json"
	"time"
)

// IDLength is the length of a hex-encoded ObjectID, the identifier scheme
// shared by every storage backend.
const IDLength = 24

// TimeLayout is the ISO-8601 form of timestamps on the wire and in
// document storage: always three fractional digits, always UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Wire names of issue fields. SQL columns use the same names except FieldID,
// which is stored in the "id" column.
const (
	FieldID         = "_id"
	FieldProject    = "project"
	FieldIssueTitle = "issue_title"
	FieldIssueText  = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldOpen       = "open"
	FieldCreatedOn  = "created_on"
	FieldUpdatedOn  = "updated_on"
)

type Issue struct {
	ID         string    `gorm:"primaryKey;type:char(24)" json:"_id"`
	Project    string    `gorm:"type:varchar(255);index;not null" json:"project"`
	IssueTitle string    `gorm:"type:text;not null" json:"issue_title"`
	IssueText  string    `gorm:"type:text;not null" json:"issue_text"`
	CreatedBy  string    `gorm:"type:varchar(255);not null" json:"created_by"`
	AssignedTo string    `gorm:"type:varchar(255);not null" json:"assigned_to"`
	StatusText string    `gorm:"type:text;not null" json:"status_text"`
	Open       bool      `gorm:"index;not null" json:"open"`
	CreatedOn  time.Time `gorm:"not null" json:"created_on"`
	UpdatedOn  time.Time `gorm:"not null" json:"updated_on"`
}

func (Issue) TableName() string { return "issues" }

// MarshalJSON writes created_on and updated_on in TimeLayout.
func (i Issue) MarshalJSON() ([]byte, error) {
	type plain Issue
	return json.Marshal(struct {
		plain
		CreatedOn string `json:"created_on"`
		UpdatedOn string `json:"updated_on"`
	}{
		plain:     plain(i),
		CreatedOn: i.CreatedOn.UTC().Format(TimeLayout),
		UpdatedOn: i.UpdatedOn.UTC().Format(TimeLayout),
	})
}

// Now returns the current time in UTC at millisecond precision, the
// resolution of ISO-8601 timestamps on the wire.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
