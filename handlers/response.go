package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"feastflow-api/apperrors"

	"github.com/gin-gonic/gin"
)

// Pagination is the listing cursor echoed back to the client.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

type envelope struct {
	Success    bool                   `json:"success"`
	Data       any                    `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Fields     []apperrors.FieldError `json:"fields,omitempty"`
	Pagination *Pagination            `json:"pagination,omitempty"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondPage(c *gin.Context, data any, p Pagination) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

// respondErr maps a core error to its status code and surfaces the specific
// rule or field violated, never a generic message.
func respondErr(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	e := envelope{Success: false, Error: err.Error()}

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		e.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, e)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// parsePagination coerces page/limit query strings to bounded integers.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
