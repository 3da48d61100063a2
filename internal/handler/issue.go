package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/spf13/cast"

	"github.com/psds-microservice/issue-tracker/internal/errs"
	"github.com/psds-microservice/issue-tracker/internal/model"
	"github.com/psds-microservice/issue-tracker/internal/service"
)

const (
	resultUpdated = "successfully updated"
	resultDeleted = "successfully deleted"
)

const maxMultipartMemory = 8 << 20

// IssueHandler serves /api/issues/:project. Outcomes of the issue operations,
// failures included, are answered with 200 and told apart by the payload.
type IssueHandler struct {
	svc service.IssueServicer
	log *slog.Logger
}

func NewIssueHandler(svc service.IssueServicer, log *slog.Logger) *IssueHandler {
	if log == nil {
		log = slog.Default()
	}
	return &IssueHandler{svc: svc, log: log}
}

func (h *IssueHandler) List(c *gin.Context) {
	filters := make(map[string]string)
	for _, field := range service.FilterFields {
		if v := c.Query(field); v != "" {
			filters[field] = v
		}
	}
	items, err := h.svc.List(c.Request.Context(), c.Param("project"), filters)
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *IssueHandler) Create(c *gin.Context) {
	body := readBody(c)
	issue, err := h.svc.Create(c.Request.Context(), c.Param("project"), service.CreateInput{
		IssueTitle: field(body, model.FieldIssueTitle),
		IssueText:  field(body, model.FieldIssueText),
		CreatedBy:  field(body, model.FieldCreatedBy),
		AssignedTo: field(body, model.FieldAssignedTo),
		StatusText: field(body, model.FieldStatusText),
	})
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) Update(c *gin.Context) {
	body := readBody(c)
	id := field(body, model.FieldID)
	err := h.svc.Update(c.Request.Context(), service.UpdateInput{
		ID:         id,
		IssueTitle: field(body, model.FieldIssueTitle),
		IssueText:  field(body, model.FieldIssueText),
		CreatedBy:  field(body, model.FieldCreatedBy),
		AssignedTo: field(body, model.FieldAssignedTo),
		StatusText: field(body, model.FieldStatusText),
		Open:       field(body, model.FieldOpen),
	})
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": resultUpdated, model.FieldID: id.Value})
}

func (h *IssueHandler) Delete(c *gin.Context) {
	body := readBody(c)
	id := field(body, model.FieldID)
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": resultDeleted, model.FieldID: id.Value})
}

// fail renders issue errors as a 200 payload; anything else is a storage
// fault and becomes a generic 500.
func (h *IssueHandler) fail(c *gin.Context, op string, err error) {
	var ie *errs.IssueError
	if errors.As(err, &ie) {
		payload := gin.H{"error": ie.Message}
		if ie.EchoID {
			payload[model.FieldID] = ie.ID
		}
		c.JSON(http.StatusOK, payload)
		return
	}
	h.log.ErrorContext(c.Request.Context(), "issues: "+op+" failed",
		"project", c.Param("project"), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// readBody decodes a JSON or form body into a flat field map. A body that
// cannot be decoded yields an empty map.
func readBody(c *gin.Context) map[string]any {
	body := make(map[string]any)
	switch c.ContentType() {
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err == nil && c.Request.MultipartForm != nil {
			for k, v := range c.Request.MultipartForm.Value {
				if len(v) > 0 {
					body[k] = v[0]
				}
			}
		}
	case binding.MIMEPOSTForm:
		raw, err := c.GetRawData()
		if err != nil {
			return body
		}
		// DELETE bodies are not parsed by net/http, so forms are decoded by hand.
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return body
		}
		for k, v := range values {
			if len(v) > 0 {
				body[k] = v[0]
			}
		}
	default:
		raw, err := c.GetRawData()
		if err != nil || len(raw) == 0 {
			return body
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return make(map[string]any)
		}
	}
	return body
}

// field extracts a request value. Values that are absent or falsy (null,
// false, 0, "") are not sent; anything else is sent as its string form.
func field(body map[string]any, key string) model.Field {
	v, ok := body[key]
	if !ok || !truthy(v) {
		return model.Field{}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	return model.Field{Value: s, Present: true}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	}
	return true
}
