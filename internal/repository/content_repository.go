package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/moments/internal/domain"
)

// ContentRepository persists photos, tags, comments, notifications and the
// follow/collect edges between users and photos.
type ContentRepository interface {
	GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error)
	CreatePhoto(ctx context.Context, photo *domain.Photo) (bool, error)
	GetPhotoByFilename(ctx context.Context, filename string) (*domain.Photo, error)
	TagPhoto(ctx context.Context, photoID, tagID string) error
	CreateComment(ctx context.Context, comment *domain.Comment) error
	CreateNotification(ctx context.Context, n *domain.Notification) error
	Follow(ctx context.Context, followerID, followedID string) (bool, error)
	Collect(ctx context.Context, userID, photoID string) (bool, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	ListPhotoIDs(ctx context.Context) ([]string, error)
	CountComments(ctx context.Context) (int, error)
}

type contentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository builds repository.
func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &contentRepository{pool: pool}
}

func (r *contentRepository) GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	const query = `
        INSERT INTO tags (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
        RETURNING id, name`
	var tag domain.Tag
	if err := r.pool.QueryRow(ctx, query, name).Scan(&tag.ID, &tag.Name); err != nil {
		return nil, err
	}
	return &tag, nil
}

// CreatePhoto inserts the photo unless one with the same filename exists.
// It reports whether a row was written.
func (r *contentRepository) CreatePhoto(ctx context.Context, photo *domain.Photo) (bool, error) {
	const query = `
        INSERT INTO photos (author_id, description, filename, filename_s, filename_m, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (filename) DO NOTHING
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		photo.AuthorID,
		photo.Description,
		photo.Filename,
		photo.FilenameS,
		photo.FilenameM,
		photo.CreatedAt,
	).Scan(&photo.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *contentRepository) GetPhotoByFilename(ctx context.Context, filename string) (*domain.Photo, error) {
	const query = `
        SELECT id, author_id, description, filename, filename_s, filename_m, created_at
        FROM photos WHERE filename=$1`
	var photo domain.Photo
	if err := r.pool.QueryRow(ctx, query, filename).Scan(
		&photo.ID,
		&photo.AuthorID,
		&photo.Description,
		&photo.Filename,
		&photo.FilenameS,
		&photo.FilenameM,
		&photo.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *contentRepository) TagPhoto(ctx context.Context, photoID, tagID string) error {
	const query = `
        INSERT INTO photo_tags (photo_id, tag_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.pool.Exec(ctx, query, photoID, tagID)
	return err
}

func (r *contentRepository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (author_id, photo_id, body, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		comment.AuthorID,
		comment.PhotoID,
		comment.Body,
		comment.CreatedAt,
	).Scan(&comment.ID)
}

func (r *contentRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (receiver_id, message)
        VALUES ($1,$2)
        RETURNING id, is_read, created_at`
	return r.pool.QueryRow(ctx, query, n.ReceiverID, n.Message).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}

func (r *contentRepository) Follow(ctx context.Context, followerID, followedID string) (bool, error) {
	const query = `
        INSERT INTO follows (follower_id, followed_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, followerID, followedID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *contentRepository) Collect(ctx context.Context, userID, photoID string) (bool, error) {
	const query = `
        INSERT INTO collects (collector_id, photo_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, userID, photoID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *contentRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM users ORDER BY created_at, id`)
}

func (r *contentRepository) ListPhotoIDs(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, `SELECT id FROM photos ORDER BY created_at, id`)
}

func (r *contentRepository) CountComments(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *contentRepository) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
