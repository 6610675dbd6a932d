package dto

import (
	"snapgraph/internal/entity/common"
	"time"
)

// PhotoCreateRequest carries an inline base64 or data URL image payload.
type PhotoCreateRequest struct {
	Description string `json:"description" binding:"max=500"`
	Image       string `json:"image" binding:"required"`
}

// PhotoSummary describes a photo in feeds and listings.
type PhotoSummary struct {
	ID             uint      `json:"id"`
	AuthorID       uint      `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Description    string    `json:"description"`
	URL            string    `json:"url"`
	CreatedAt      time.Time `json:"created_at"`
}

// PhotoListResponse is a page of photos.
type PhotoListResponse struct {
	Photos []PhotoSummary `json:"photos"`
	Meta   *common.Meta   `json:"meta"`
}

// EdgeSummary is one follow or collect edge as seen from the listing side.
type EdgeSummary struct {
	User      UserSummary `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

// EdgeListResponse is a page of edges.
type EdgeListResponse struct {
	Items []EdgeSummary `json:"items"`
	Meta  *common.Meta  `json:"meta"`
}

// RelationStatus reports the state of a graph edge after a mutation or lookup.
type RelationStatus struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// CommentCreateRequest is the payload for a new comment or reply.
type CommentCreateRequest struct {
	Body      string `json:"body" binding:"required,max=2000"`
	RepliedID *uint  `json:"replied_id,omitempty"`
}

// CommentSummary describes a stored comment.
type CommentSummary struct {
	ID        uint      `json:"id"`
	PhotoID   uint      `json:"photo_id"`
	AuthorID  uint      `json:"author_id"`
	RepliedID *uint     `json:"replied_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationSummary is one inbox entry.
type NotificationSummary struct {
	ID        uint      `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationQuery filters the inbox.
type NotificationQuery struct {
	common.BaseParams
	Filter string `json:"filter" form:"filter" query:"filter"` // all, unread
}

// NotificationListResponse is a page of the inbox.
type NotificationListResponse struct {
	Notifications []NotificationSummary `json:"notifications"`
	Meta          *common.Meta          `json:"meta"`
}

// CountResponse wraps a single counter.
type CountResponse struct {
	Count int64 `json:"count"`
}
