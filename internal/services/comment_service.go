package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/isdelr/quill-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// CommentServiceProvider defines the interface for comment services.
type CommentServiceProvider interface {
	CreateComment(ctx context.Context, body string, postID, ownerID int64) (models.Comment, error)
	GetCommentsForPost(ctx context.Context, postID int64) ([]models.Comment, error)
}

// CommentService provides business logic for comments.
type CommentService struct {
	db          *sqlx.DB
	eventSvc    EventServiceProvider
	broadcaster Broadcaster
}

// NewCommentService creates a new CommentService. broadcaster may be nil.
func NewCommentService(db *sqlx.DB, eventSvc EventServiceProvider, broadcaster Broadcaster) *CommentService {
	return &CommentService{db: db, eventSvc: eventSvc, broadcaster: broadcaster}
}

// PostTopic is the live-feed topic that carries updates for one post.
func PostTopic(postID int64) string {
	return strconv.FormatInt(postID, 10)
}

// CreateComment attaches a comment to an existing post.
func (s *CommentService) CreateComment(ctx context.Context, body string, postID, ownerID int64) (models.Comment, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)", postID)
	if err != nil {
		return models.Comment{}, err
	}
	if !exists {
		return models.Comment{}, fmt.Errorf("post with ID %d: %w", postID, ErrNotFound)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO comments(body, post_id, user_id) VALUES(?, ?, ?)", body, postID, ownerID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Comment{}, err
	}

	var comment models.Comment
	err = s.db.GetContext(ctx, &comment,
		"SELECT id, body, post_id, user_id, created_at FROM comments WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Comment{}, fmt.Errorf("comment with ID %d: %w", id, ErrNotFound)
		}
		return models.Comment{}, err
	}

	if err := s.eventSvc.CreateEvent(ctx, EventCommentCreated, "info",
		fmt.Sprintf("Comment added to post %d.", postID), &ownerID); err != nil {
		log.Warn().Err(err).Int64("comment_id", comment.ID).Msg("Failed to record comment event")
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTopic(PostTopic(postID), EventCommentCreated, comment)
	}
	return comment, nil
}

// GetCommentsForPost lists the comments of a post in creation order.
func (s *CommentService) GetCommentsForPost(ctx context.Context, postID int64) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.SelectContext(ctx, &comments,
		"SELECT id, body, post_id, user_id, created_at FROM comments WHERE post_id = ? ORDER BY id", postID)
	if err != nil {
		return nil, err
	}
	return comments, nil
}
