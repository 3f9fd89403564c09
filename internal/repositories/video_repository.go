package repositories

import (
	"context"

	"github.com/videotube/backend/internal/models"
)

// VideoRepository defines the read and view-recording contract for videos.
type VideoRepository interface {
	FindByID(ctx context.Context, id string) (models.Video, error)
	// ListByIDs returns the videos in the order of ids, skipping missing ones.
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	// RecordView moves videoID to the front of the viewer's history and bumps its view count.
	RecordView(ctx context.Context, viewerID, videoID string) error
}
