package service

import (
	"fmt"

	"github.com/sakif/conduit/internal/apperror"
)

// authored is implemented by *model.Article and *model.Comment.
type authored interface {
	IsAuthoredBy(userID string) bool
}

// requireOwner is the single authorization rule of the API: only the author of
// a resource may change or delete it. There are no roles and no admin
// override. kind names the resource in the error message.
func requireOwner(actorID string, resource authored, kind string) error {
	if !resource.IsAuthoredBy(actorID) {
		return apperror.Forbidden(fmt.Sprintf("only the author can modify this %s", kind))
	}
	return nil
}
