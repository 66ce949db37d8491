package model

import "time"

// Comment is a reply on an article. ArticleID is a back-reference only: the
// article's CommentIDs list is the authoritative membership.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"-"`
	Author    *User     `json:"-"`
	ArticleID string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAuthoredBy reports whether userID wrote the comment.
func (c *Comment) IsAuthoredBy(userID string) bool {
	return userID != "" && c.AuthorID == userID
}
