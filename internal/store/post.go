package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/weblog/api/types"
)

const postColumns = `id, title, category, description, creator_id, thumbnail, views, likes, tags, created_at, updated_at`

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Category,
		&post.Description,
		&post.CreatorID,
		&post.Thumbnail,
		&post.Views,
		pq.Array(&post.Likes),
		pq.Array(&post.Tags),
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return post, err
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// List returns every post, most recently updated first.
func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts ORDER BY updated_at DESC, id DESC`
	return r.query(ctx, query)
}

// ListByCategory returns posts whose category equals category exactly, newest first.
func (r *PostRepository) ListByCategory(ctx context.Context, category string) ([]types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE category = $1 ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, category)
}

// ListByCreator returns posts written by userID, newest first.
func (r *PostRepository) ListByCreator(ctx context.Context, userID int) ([]types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE creator_id = $1 ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, userID)
}

func (r *PostRepository) query(ctx context.Context, query string, args ...any) ([]types.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// Create inserts the post and increments its creator's post counter in one transaction.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []int64{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Post{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO posts (title, category, description, creator_id, thumbnail, views, likes, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Category,
		post.Description,
		post.CreatorID,
		post.Thumbnail,
		post.Views,
		pq.Array(post.Likes),
		pq.Array(post.Tags),
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, mapWriteError(err)
	}

	if err := adjustPostCount(ctx, tx, post.CreatorID, 1); err != nil {
		return types.Post{}, fmt.Errorf("increment post count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// Update writes the mutable fields of a post. Creator and counters are never touched.
func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		UPDATE posts
		SET title = $1,
			category = $2,
			description = $3,
			thumbnail = $4,
			updated_at = $5
		WHERE id = $6
		RETURNING ` + postColumns
	updated, err := scanPost(r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Category,
		post.Description,
		post.Thumbnail,
		time.Now(),
		post.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return updated, nil
}

// Delete removes the post and decrements its creator's post counter, clamped
// at zero, in one transaction.
func (r *PostRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `DELETE FROM posts WHERE id = $1 RETURNING creator_id`
	var creatorID int
	if err := tx.QueryRowContext(ctx, query, id).Scan(&creatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := adjustPostCount(ctx, tx, creatorID, -1); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("decrement post count: %w", err)
	}

	return tx.Commit()
}
