package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/isdelr/quill-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes live updates to connected websocket clients.
type Broadcaster interface {
	BroadcastAll(action string, payload interface{})
	BroadcastTopic(topic, action string, payload interface{})
}

// PostServiceProvider defines the interface for post services.
type PostServiceProvider interface {
	CreatePost(ctx context.Context, name, body string, ownerID int64) (models.Post, error)
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	GetPostByID(ctx context.Context, id int64) (models.Post, error)
	GetPostWithComments(ctx context.Context, id int64) (models.PostWithComments, error)
	CountContent(ctx context.Context) (models.ContentCounts, error)
}

// PostService provides business logic for posts.
type PostService struct {
	db          *sqlx.DB
	commentSvc  CommentServiceProvider
	eventSvc    EventServiceProvider
	broadcaster Broadcaster
}

// NewPostService creates a new PostService. broadcaster may be nil.
func NewPostService(db *sqlx.DB, commentSvc CommentServiceProvider, eventSvc EventServiceProvider, broadcaster Broadcaster) *PostService {
	return &PostService{
		db:          db,
		commentSvc:  commentSvc,
		eventSvc:    eventSvc,
		broadcaster: broadcaster,
	}
}

// CreatePost inserts a post owned by ownerID and returns it with its generated id.
func (s *PostService) CreatePost(ctx context.Context, name, body string, ownerID int64) (models.Post, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO posts(name, body, user_id) VALUES(?, ?, ?)", name, body, ownerID)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Post{}, err
	}

	post, err := s.GetPostByID(ctx, id)
	if err != nil {
		return models.Post{}, err
	}

	if err := s.eventSvc.CreateEvent(ctx, EventPostCreated, "info",
		fmt.Sprintf("Post '%s' created.", post.Name), &ownerID); err != nil {
		log.Warn().Err(err).Int64("post_id", post.ID).Msg("Failed to record post event")
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastAll(EventPostCreated, post)
	}
	return post, nil
}

// GetAllPosts returns every post ordered by id.
func (s *PostService) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := s.db.SelectContext(ctx, &posts,
		"SELECT id, name, body, user_id, created_at FROM posts ORDER BY id")
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPostByID retrieves a single post by its ID.
func (s *PostService) GetPostByID(ctx context.Context, id int64) (models.Post, error) {
	var post models.Post
	err := s.db.GetContext(ctx, &post,
		"SELECT id, name, body, user_id, created_at FROM posts WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post with ID %d: %w", id, ErrNotFound)
		}
		return models.Post{}, err
	}
	return post, nil
}

// GetPostWithComments fetches the post, then its comments.
func (s *PostService) GetPostWithComments(ctx context.Context, id int64) (models.PostWithComments, error) {
	post, err := s.GetPostByID(ctx, id)
	if err != nil {
		return models.PostWithComments{}, err
	}
	comments, err := s.commentSvc.GetCommentsForPost(ctx, id)
	if err != nil {
		return models.PostWithComments{}, err
	}
	return models.PostWithComments{Post: post, Comments: comments}, nil
}

// CountContent returns the number of stored users, posts and comments.
func (s *PostService) CountContent(ctx context.Context) (models.ContentCounts, error) {
	var counts models.ContentCounts
	err := s.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM posts) AS posts,
			(SELECT COUNT(*) FROM comments) AS comments`)
	return counts, err
}
