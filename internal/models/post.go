package models

import "time"

// Post is a blog entry owned by a user.
type Post struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Body      string    `json:"body" db:"body"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Comment is attached to exactly one post.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	Body      string    `json:"body" db:"body"`
	PostID    int64     `json:"post_id" db:"post_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PostWithComments is a post with its comments inlined under "comments".
type PostWithComments struct {
	Post
	Comments []Comment `json:"comments"`
}

// ContentCounts summarizes how much content is stored.
type ContentCounts struct {
	Users    int `json:"users" db:"users"`
	Posts    int `json:"posts" db:"posts"`
	Comments int `json:"comments" db:"comments"`
}
