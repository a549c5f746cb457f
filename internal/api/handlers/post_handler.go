package handlers

import (
	"net/http"

	"github.com/isdelr/quill-be/internal/auth"
	"github.com/isdelr/quill-be/internal/services"
	"github.com/rs/zerolog/log"
)

// PostHandler handles HTTP requests related to posts.
type PostHandler struct {
	service services.PostServiceProvider
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider) *PostHandler {
	return &PostHandler{service: service}
}

// PostPayload is the body of POST /post.
type PostPayload struct {
	Name string `json:"name" validate:"required,max=200"`
	Body string `json:"body" validate:"required"`
}

// Create stores a post owned by the authenticated user.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, "Not authenticated", "")
		return
	}

	var payload PostPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	post, err := h.service.CreatePost(r.Context(), payload.Name, payload.Body, user.ID)
	if err != nil {
		handleServiceError(w, r, err, "Failed to create post")
		return
	}

	log.Info().Int64("post_id", post.ID).Int64("user_id", user.ID).Msg("Post created")
	writeJSON(w, http.StatusCreated, post)
}

// GetAll handles the request to get all posts.
func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.GetAllPosts(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "Failed to retrieve posts")
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

// Get returns one post with its comments.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "post_id")
	if !ok {
		return
	}

	post, err := h.service.GetPostWithComments(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "Failed to retrieve post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}
