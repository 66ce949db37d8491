// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. Go favours composition over
// inheritance, so relations are plain ID fields plus optional populated pointers.
package model

import (
	"slices"
	"time"
)

// User represents a registered account and the two social-graph sets it owns.
//
// WHY ID SETS AND NOT POINTERS?
// A user does not own the articles it favorites or the users it follows; it only
// references them. Following and Favorites hold IDs, loaded from the follows and
// favorites tables by the repository. They are only populated by lookups that
// need them (GetUserByID and friends), never serialised to clients directly:
// clients see them through the view package as booleans.
//
// GitHubID is 0 for accounts registered with email and password.
type User struct {
	ID           string    `json:"id"`
	GitHubID     int64     `json:"-"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Bio          string    `json:"bio"`
	Image        string    `json:"image"`
	PasswordHash string    `json:"-"`
	Following    []string  `json:"-"` // user IDs this user follows
	Favorites    []string  `json:"-"` // article IDs this user favorited
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsFollowing reports whether userID is in u's following set.
// A nil receiver is the anonymous viewer, who follows nobody.
func (u *User) IsFollowing(userID string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Following, userID)
}

// HasFavorited reports whether articleID is in u's favorites set.
func (u *User) HasFavorited(articleID string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Favorites, articleID)
}
