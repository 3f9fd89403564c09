package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

const videoColumns = `id, owner_id, video_file, thumbnail, title, description, duration, views, is_published, created_at`

// PostgresVideoRepository provides PostgreSQL-backed access to videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// FindByID fetches a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return video, nil
}

// ListByIDs fetches the videos for ids in the same order.
func (r *PostgresVideoRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	videos := []models.Video{}
	if len(ids) == 0 {
		return videos, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.video_file, v.thumbnail, v.title, v.description,
               v.duration, v.views, v.is_published, v.created_at
        FROM unnest($1::TEXT[]::UUID[]) WITH ORDINALITY AS h(video_id, position)
        JOIN videos v ON v.id = h.video_id
        ORDER BY h.position
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query videos by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// RecordView updates the viewer's history and the video's view count atomically.
func (r *PostgresVideoRepository) RecordView(ctx context.Context, viewerID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID)
		if err != nil {
			return fmt.Errorf("increment views: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		tag, err = tx.Exec(ctx, `
            UPDATE users
            SET watch_history = array_prepend($2::UUID, array_remove(watch_history, $2::UUID))
            WHERE id = $1
        `, viewerID, videoID)
		if err != nil {
			return fmt.Errorf("update watch history: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	if err := row.Scan(&v.ID, &v.OwnerID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description,
		&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt); err != nil {
		return models.Video{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
