package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sakif/conduit/internal/apperror"
)

// bind decodes the JSON body into v and runs its Bind check. Malformed JSON
// becomes a validation error on "body"; errors returned by Bind pass through.
func bind(r *http.Request, v render.Binder) error {
	if err := render.Bind(r, v); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}

// Request bodies wrap their payload in a named key ({"user": {...}},
// {"article": {...}}, {"comment": {...}}). Bind rejects a missing wrapper.

type registerRequest struct {
	User *struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

func (p *registerRequest) Bind(r *http.Request) error {
	if p.User == nil {
		return apperror.ValidationFailed("user", "user is required")
	}
	return nil
}

type loginRequest struct {
	User *struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"user"`
}

func (p *loginRequest) Bind(r *http.Request) error {
	if p.User == nil {
		return apperror.ValidationFailed("user", "user is required")
	}
	return nil
}

type updateUserRequest struct {
	User *struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
		Bio      *string `json:"bio"`
		Image    *string `json:"image"`
	} `json:"user"`
}

func (p *updateUserRequest) Bind(r *http.Request) error {
	if p.User == nil {
		return apperror.ValidationFailed("user", "user is required")
	}
	return nil
}

type createArticleRequest struct {
	Article *struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Body        string   `json:"body"`
		TagList     []string `json:"tagList"`
	} `json:"article"`
}

func (p *createArticleRequest) Bind(r *http.Request) error {
	if p.Article == nil {
		return apperror.ValidationFailed("article", "article is required")
	}
	return nil
}

// updateArticleRequest uses pointers so that an absent field (nil) can be told
// apart from an empty one ("").
type updateArticleRequest struct {
	Article *struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Body        *string   `json:"body"`
		TagList     *[]string `json:"tagList"`
	} `json:"article"`
}

func (p *updateArticleRequest) Bind(r *http.Request) error {
	if p.Article == nil {
		return apperror.ValidationFailed("article", "article is required")
	}
	return nil
}

type createCommentRequest struct {
	Comment *struct {
		Body string `json:"body"`
	} `json:"comment"`
}

func (p *createCommentRequest) Bind(r *http.Request) error {
	if p.Comment == nil {
		return apperror.ValidationFailed("comment", "comment is required")
	}
	return nil
}
