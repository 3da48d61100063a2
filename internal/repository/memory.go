package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/psds-microservice/issue-tracker/internal/model"
)

// MemoryRepository keeps issues in process memory. Contents are lost on exit.
type MemoryRepository struct {
	mu     sync.RWMutex
	issues map[string]model.Issue
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{issues: make(map[string]model.Issue)}
}

func (r *MemoryRepository) Find(ctx context.Context, c Criteria) ([]model.Issue, error) {
	for field := range c {
		if !isFilterable(field) {
			return nil, fmt.Errorf("find issues: unknown field %q", field)
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Issue, 0)
	for _, issue := range r.issues {
		if matches(issue, c) {
			items = append(items, issue)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedOn.Equal(items[j].CreatedOn) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedOn.Before(items[j].CreatedOn)
	})
	return items, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, issue *model.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if issue.ID == "" {
		issue.ID = NewID()
	}
	if _, exists := r.issues[issue.ID]; exists {
		return fmt.Errorf("insert issue: duplicate id %s", issue.ID)
	}
	r.issues[issue.ID] = *issue
	return nil
}

func (r *MemoryRepository) UpdateByID(ctx context.Context, id string, ch Changes) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return 0, nil
	}
	applyChanges(&issue, ch)
	r.issues[id] = issue
	return 1, nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issues[id]; !ok {
		return 0, nil
	}
	delete(r.issues, id)
	return 1, nil
}

func (r *MemoryRepository) Migrate(ctx context.Context) error { return nil }

func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }

func matches(issue model.Issue, c Criteria) bool {
	for field, want := range c {
		if field == model.FieldOpen {
			open, ok := parseOpen(want)
			if !ok || issue.Open != open {
				return false
			}
			continue
		}
		if fieldValue(issue, field) != want {
			return false
		}
	}
	return true
}

func fieldValue(issue model.Issue, field string) string {
	switch field {
	case model.FieldID:
		return issue.ID
	case model.FieldProject:
		return issue.Project
	case model.FieldIssueTitle:
		return issue.IssueTitle
	case model.FieldIssueText:
		return issue.IssueText
	case model.FieldCreatedBy:
		return issue.CreatedBy
	case model.FieldAssignedTo:
		return issue.AssignedTo
	case model.FieldStatusText:
		return issue.StatusText
	case model.FieldOpen:
		return strconv.FormatBool(issue.Open)
	}
	return ""
}
