package converter

import (
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
)

// PhotoToSummary converts a photo; urlFor maps the stored object key to a public URL.
func PhotoToSummary(p *db.Photo, urlFor func(string) string) dto.PhotoSummary {
	if p == nil {
		return dto.PhotoSummary{}
	}
	summary := dto.PhotoSummary{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
	if p.Author != nil {
		summary.AuthorUsername = p.Author.Username
	}
	if urlFor != nil && p.ObjectKey != "" {
		summary.URL = urlFor(p.ObjectKey)
	}
	return summary
}

// PhotosToSummaries converts a slice of photos.
func PhotosToSummaries(photos []db.Photo, urlFor func(string) string) []dto.PhotoSummary {
	out := make([]dto.PhotoSummary, len(photos))
	for i := range photos {
		out[i] = PhotoToSummary(&photos[i], urlFor)
	}
	return out
}

// CommentToSummary converts a comment.
func CommentToSummary(c *db.Comment) dto.CommentSummary {
	if c == nil {
		return dto.CommentSummary{}
	}
	return dto.CommentSummary{
		ID:        c.ID,
		PhotoID:   c.PhotoID,
		AuthorID:  c.AuthorID,
		RepliedID: c.RepliedID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// NotificationsToSummaries converts inbox rows.
func NotificationsToSummaries(items []db.Notification) []dto.NotificationSummary {
	out := make([]dto.NotificationSummary, len(items))
	for i, n := range items {
		out[i] = dto.NotificationSummary{
			ID:        n.ID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}

// FollowersToEdges lists the follower side of follow edges.
func FollowersToEdges(follows []db.Follow) []dto.EdgeSummary {
	out := make([]dto.EdgeSummary, 0, len(follows))
	for _, f := range follows {
		out = append(out, dto.EdgeSummary{User: PublicUserSummary(f.Follower), CreatedAt: f.CreatedAt})
	}
	return out
}

// FollowingToEdges lists the followed side of follow edges.
func FollowingToEdges(follows []db.Follow) []dto.EdgeSummary {
	out := make([]dto.EdgeSummary, 0, len(follows))
	for _, f := range follows {
		out = append(out, dto.EdgeSummary{User: PublicUserSummary(f.Followed), CreatedAt: f.CreatedAt})
	}
	return out
}

// CollectorsToEdges lists the collector side of collect edges.
func CollectorsToEdges(collects []db.Collect) []dto.EdgeSummary {
	out := make([]dto.EdgeSummary, 0, len(collects))
	for _, c := range collects {
		out = append(out, dto.EdgeSummary{User: PublicUserSummary(c.Collector), CreatedAt: c.CreatedAt})
	}
	return out
}
