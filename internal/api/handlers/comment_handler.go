package handlers

import (
	"net/http"

	"github.com/isdelr/quill-be/internal/auth"
	"github.com/isdelr/quill-be/internal/services"
)

// CommentHandler handles HTTP requests related to comments.
type CommentHandler struct {
	service services.CommentServiceProvider
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service services.CommentServiceProvider) *CommentHandler {
	return &CommentHandler{service: service}
}

// CommentPayload is the body of POST /comment.
type CommentPayload struct {
	Body   string `json:"body" validate:"required"`
	PostID int64  `json:"post_id" validate:"required,gt=0"`
}

// Create attaches a comment from the authenticated user to an existing post.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, "Not authenticated", "")
		return
	}

	var payload CommentPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	comment, err := h.service.CreateComment(r.Context(), payload.Body, payload.PostID, user.ID)
	if err != nil {
		handleServiceError(w, r, err, "Failed to create comment")
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// GetAllForPost lists the comments of a post.
func (h *CommentHandler) GetAllForPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "post_id")
	if !ok {
		return
	}

	comments, err := h.service.GetCommentsForPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, r, err, "Failed to retrieve comments")
		return
	}

	writeJSON(w, http.StatusOK, comments)
}
