package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image,
            refresh_token, watch_history::TEXT[], created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create registers a new user. The username/email check and the insert share a
// serializable transaction that is retried on serialization failures.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var taken bool
		if err := tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
        `, user.Username, user.Email).Scan(&taken); err != nil {
			return fmt.Errorf("check existing user: %w", err)
		}
		if taken {
			return ErrConflict
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
        `, user.ID, user.Username, user.Email, user.FullName, user.Password, user.Avatar, user.CoverImage, user.CreatedAt, user.UpdatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByUsername fetches a user by their lower-cased username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of a fixed set chosen by the callers above.
	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}
	return user, nil
}

// FindSummaries returns condensed projections keyed by id for the given users.
func (r *PostgresUserRepository) FindSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	summaries := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, username, full_name, avatar
        FROM users
        WHERE id = ANY($1::TEXT[]::UUID[])
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.UserSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.FullName, &s.Avatar); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		summaries[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user summaries: %w", err)
	}

	return summaries, nil
}

// UpdateAccount changes the full name and email of a user.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	return r.updateReturning(ctx, "update account", `
        UPDATE users SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+userColumns, id, fullName, email, updatedAt)
}

// UpdateAvatar replaces the avatar URL.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error) {
	return r.updateReturning(ctx, "update avatar", `
        UPDATE users SET avatar = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+userColumns, id, avatar, updatedAt)
}

// UpdateCoverImage replaces the cover image URL.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, coverImage string, updatedAt time.Time) (models.User, error) {
	return r.updateReturning(ctx, "update cover image", `
        UPDATE users SET cover_image = NULLIF($2, ''), updated_at = $3
        WHERE id = $1
        RETURNING `+userColumns, id, coverImage, updatedAt)
}

func (r *PostgresUserRepository) updateReturning(ctx context.Context, op, query string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		if mapped := mapWriteError(err); mapped != err {
			return models.User{}, mapped
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error {
	return r.exec(ctx, "update password", `
        UPDATE users SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, hash, updatedAt)
}

// SetRefreshToken overwrites the current refresh token unconditionally.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, "set refresh token", `
        UPDATE users SET refresh_token = $2
        WHERE id = $1
    `, id, token)
}

// ClearRefreshToken revokes the current refresh token.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.exec(ctx, "clear refresh token", `
        UPDATE users SET refresh_token = NULL
        WHERE id = $1
    `, id)
}

// SwapRefreshToken replaces the refresh token only while it still equals
// current. It returns false when another writer got there first.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $3
        WHERE id = $1 AND refresh_token = $2
    `, id, current, next)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// WatchHistory returns the user's watched video ids, most recent first.
func (r *PostgresUserRepository) WatchHistory(ctx context.Context, id string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var history []string
	if err := conn.QueryRow(ctx, `
        SELECT watch_history::TEXT[] FROM users WHERE id = $1
    `, id).Scan(&history); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select watch history: %w", err)
	}

	return history, nil
}

func (r *PostgresUserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user         models.User
		coverImage   sql.NullString
		refreshToken sql.NullString
	)
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password, &user.Avatar,
		&coverImage, &refreshToken, &user.WatchHistory, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return models.User{}, err
	}
	user.CoverImage = coverImage.String
	user.RefreshToken = refreshToken.String
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
