package repositories

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
	UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImage string, updatedAt time.Time) (models.User, error)
	UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	WatchHistory(ctx context.Context, id string) ([]string, error)
}
