package statusserver

import (
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
)

// Response is the standard API response envelope. All JSON responses
// use this format (except /metrics, which uses the Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// SessionSummary is one element of the GET /api/v1/sessions listing.
type SessionSummary struct {
	ID          string `json:"id"`
	StartedAt   string `json:"started_at"`
	SizeBytes   int64  `json:"size_bytes"`
	LastIndex   int64  `json:"last_index"`
	InviteCount int    `json:"invite_count"`
	Resetting   bool   `json:"resetting,omitempty"`
}

// ListSessionsResponse is the response body for GET /api/v1/sessions.
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

// OpenSessionRequest is the request body for POST /api/v1/sessions. An
// empty ID asks the server to generate one.
type OpenSessionRequest struct {
	ID string `json:"id,omitempty"`
}

// InvitesResponse is the response body for
// GET /api/v1/sessions/{id}/invites.
type InvitesResponse struct {
	SessionID string           `json:"session_id"`
	Invites   []map[string]any `json:"invites"`
}

// AddBanRequest is the request body for POST /api/v1/sessions/{id}/bans.
// At least one of AuthID or ClientKey must identify the client.
type AddBanRequest struct {
	Username  string `json:"username"`
	AuthID    string `json:"auth_id,omitempty"`
	ClientKey string `json:"client_key,omitempty"`
	BannedBy  string `json:"banned_by"`
}

// BansResponse is the response body for GET /api/v1/sessions/{id}/bans.
type BansResponse struct {
	SessionID string             `json:"session_id"`
	Bans      []*domain.BanEntry `json:"bans"`
}
