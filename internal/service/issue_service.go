package service

import (
	"context"
	"fmt"
	"time"

	"github.com/psds-microservice/issue-tracker/internal/errs"
	"github.com/psds-microservice/issue-tracker/internal/kafka"
	"github.com/psds-microservice/issue-tracker/internal/model"
	"github.com/psds-microservice/issue-tracker/internal/repository"
)

// FilterFields are the list query parameters that narrow a project listing.
var FilterFields = []string{
	model.FieldID,
	model.FieldIssueTitle,
	model.FieldIssueText,
	model.FieldCreatedBy,
	model.FieldAssignedTo,
	model.FieldStatusText,
	model.FieldOpen,
}

// IssueServicer is the interface the HTTP handler and CLI depend on.
type IssueServicer interface {
	List(ctx context.Context, project string, filters map[string]string) ([]model.Issue, error)
	Create(ctx context.Context, project string, in CreateInput) (*model.Issue, error)
	Update(ctx context.Context, in UpdateInput) error
	Delete(ctx context.Context, id model.Field) error
}

type CreateInput struct {
	IssueTitle model.Field
	IssueText  model.Field
	CreatedBy  model.Field
	AssignedTo model.Field
	StatusText model.Field
}

type UpdateInput struct {
	ID         model.Field
	IssueTitle model.Field
	IssueText  model.Field
	CreatedBy  model.Field
	AssignedTo model.Field
	StatusText model.Field
	// Open closes the issue when present, whatever value was sent.
	Open model.Field
}

// hasChanges reports whether any mutable field was sent.
func (in UpdateInput) hasChanges() bool {
	return in.IssueTitle.Present || in.IssueText.Present || in.CreatedBy.Present ||
		in.AssignedTo.Present || in.StatusText.Present || in.Open.Present
}

type IssueService struct {
	repo     repository.Repository
	producer kafka.IssueEventProducer
	now      func() time.Time
}

// NewIssueService wires the service to its storage. producer may be nil.
func NewIssueService(repo repository.Repository, producer kafka.IssueEventProducer) *IssueService {
	return &IssueService{repo: repo, producer: producer, now: model.Now}
}

// List returns every issue of project matching the given filters. Only keys in
// FilterFields with non-empty values are applied, verbatim.
func (s *IssueService) List(ctx context.Context, project string, filters map[string]string) ([]model.Issue, error) {
	criteria := repository.Criteria{model.FieldProject: project}
	for _, field := range FilterFields {
		if v := filters[field]; v != "" {
			criteria[field] = v
		}
	}
	items, err := s.repo.Find(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if items == nil {
		items = []model.Issue{}
	}
	return items, nil
}

func (s *IssueService) Create(ctx context.Context, project string, in CreateInput) (*model.Issue, error) {
	if !in.IssueTitle.Present || !in.IssueText.Present || !in.CreatedBy.Present {
		return nil, errs.RequiredFieldsMissing()
	}
	now := s.now()
	issue := &model.Issue{
		Project:    project,
		IssueTitle: in.IssueTitle.Value,
		IssueText:  in.IssueText.Value,
		CreatedBy:  in.CreatedBy.Value,
		AssignedTo: in.AssignedTo.Or(""),
		StatusText: in.StatusText.Or(""),
		Open:       true,
		CreatedOn:  now,
		UpdatedOn:  now,
	}
	if err := s.repo.Insert(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	s.publish(kafka.EventIssueCreated, IssueEventPayload(issue))
	return issue, nil
}

// Update applies the sent fields to one issue. Checks run in a fixed order:
// missing id, nothing to change, malformed id, then the storage outcome.
func (s *IssueService) Update(ctx context.Context, in UpdateInput) error {
	if !in.ID.Present {
		return errs.MissingID()
	}
	id := in.ID.Value
	if !in.hasChanges() {
		return errs.NoUpdateFields(id)
	}
	if len(id) != model.IDLength {
		return errs.CouldNotUpdate(id)
	}

	changes := repository.Changes{model.FieldUpdatedOn: s.now()}
	setText(changes, model.FieldIssueTitle, in.IssueTitle)
	setText(changes, model.FieldIssueText, in.IssueText)
	setText(changes, model.FieldCreatedBy, in.CreatedBy)
	setText(changes, model.FieldAssignedTo, in.AssignedTo)
	setText(changes, model.FieldStatusText, in.StatusText)
	// TODO: open can only be cleared through this field; reopening needs an
	// explicit boolean contract with API clients before it can be supported.
	if in.Open.Present {
		changes[model.FieldOpen] = false
	}

	n, err := s.repo.UpdateByID(ctx, id, changes)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if n != 1 {
		return errs.CouldNotUpdate(id)
	}
	s.publish(kafka.EventIssueUpdated, changesEventPayload(id, changes))
	return nil
}

func (s *IssueService) Delete(ctx context.Context, idField model.Field) error {
	if !idField.Present {
		return errs.MissingID()
	}
	id := idField.Value
	if len(id) != model.IDLength {
		return errs.CouldNotDelete(id)
	}
	n, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if n != 1 {
		return errs.CouldNotDelete(id)
	}
	s.publish(kafka.EventIssueDeleted, map[string]interface{}{"issue_id": id})
	return nil
}

func setText(changes repository.Changes, field string, f model.Field) {
	if f.Present {
		changes[field] = f.Value
	}
}

// publish sends the event in the background: it must go out even when the
// request is cancelled, but with a bounded lifetime.
func (s *IssueService) publish(event string, payload map[string]interface{}) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.producer.ProduceIssueEvent(ctx, event, payload)
	}()
}

// IssueEventPayload is the body of issue.created events, also used when replaying.
func IssueEventPayload(issue *model.Issue) map[string]interface{} {
	return map[string]interface{}{
		"issue_id":            issue.ID,
		model.FieldProject:    issue.Project,
		model.FieldIssueTitle: issue.IssueTitle,
		model.FieldIssueText:  issue.IssueText,
		model.FieldCreatedBy:  issue.CreatedBy,
		model.FieldAssignedTo: issue.AssignedTo,
		model.FieldStatusText: issue.StatusText,
		model.FieldOpen:       issue.Open,
		model.FieldCreatedOn:  issue.CreatedOn,
		model.FieldUpdatedOn:  issue.UpdatedOn,
	}
}

func changesEventPayload(id string, changes repository.Changes) map[string]interface{} {
	payload := map[string]interface{}{"issue_id": id}
	for k, v := range changes {
		payload[k] = v
	}
	return payload
}
