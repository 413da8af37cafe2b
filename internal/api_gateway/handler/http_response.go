package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
)

// Response is the envelope of every API answer. Exactly one of Data and Error
// is set.
type Response struct {
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page a list response holds. Offset pages (deliveries)
// fill Page through TotalItems; keyset pages (the audit log) fill Limit and
// NextCursor, which is absent on the last page.
type MetaInfo struct {
	Page       int    `json:"page,omitempty"`
	PerPage    int    `json:"per_page,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
	TotalItems int    `json:"total_items,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func offsetMeta(page, perPage, totalItems int) *MetaInfo {
	totalPages := 0
	if perPage > 0 {
		totalPages = (totalItems + perPage - 1) / perPage
	}
	return &MetaInfo{Page: page, PerPage: perPage, TotalPages: totalPages, TotalItems: totalItems}
}

func cursorMeta(limit int, nextCursor string) *MetaInfo {
	if limit <= 0 && nextCursor == "" {
		return nil
	}
	return &MetaInfo{Limit: limit, NextCursor: nextCursor}
}

func respond(c *gin.Context, status int, r *Response) {
	r.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, r)
}

func RespondOK(c *gin.Context, data any) {
	respond(c, http.StatusOK, &Response{Data: data})
}

func RespondCreated(c *gin.Context, data any) {
	respond(c, http.StatusCreated, &Response{Data: data})
}

// RespondWithPaginatedData answers 200 with one offset page.
func RespondWithPaginatedData(c *gin.Context, data any, page, perPage, totalItems int) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: offsetMeta(page, perPage, totalItems)})
}

// RespondWithCursor answers 200 with one keyset page.
func RespondWithCursor(c *gin.Context, data any, limit int, nextCursor string) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: cursorMeta(limit, nextCursor)})
}

func RespondWithError(c *gin.Context, status int, code, message string) {
	respond(c, status, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
