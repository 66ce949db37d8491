// Package slug derives URL keys for articles.
//
// FORMAT:
//
//	"Hello World" → "hello-world-0k3z9q"
//
// The first part is the slugified title (lowercase, ASCII, words joined by "-").
// The suffix is a random integer in [0, 36^6) written in base 36 and padded to
// six characters, so every slug ends in exactly six [0-9a-z] characters.
//
// UNIQUENESS:
// The suffix makes collisions unlikely (about 2.2 billion suffixes per title),
// not impossible. Callers that need a guarantee check the store and retry;
// see service.ArticleService.
package slug

import (
	"math/rand/v2"
	"strconv"
	"strings"

	gosimple "github.com/gosimple/slug"
)

const (
	suffixLength = 6
	suffixSpace  = 36 * 36 * 36 * 36 * 36 * 36 // 36^6

	// fallbackBase is used when a title has no sluggable characters (e.g. "!!!").
	fallbackBase = "article"
)

// Generator produces article slugs. The zero value is not usable; call New.
type Generator struct {
	intN func(n int64) int64
}

// New returns a Generator backed by math/rand/v2.
func New() *Generator {
	return &Generator{intN: rand.Int64N}
}

// NewWithSource returns a Generator that draws suffixes from intN.
// Tests use it to make slugs deterministic.
func NewWithSource(intN func(n int64) int64) *Generator {
	return &Generator{intN: intN}
}

// Make returns slugified title + "-" + six base-36 characters.
func (g *Generator) Make(title string) string {
	base := gosimple.Make(title)
	if base == "" {
		base = fallbackBase
	}
	return base + "-" + g.suffix()
}

func (g *Generator) suffix() string {
	n := g.intN(suffixSpace)
	s := strconv.FormatInt(n, 36)
	if len(s) < suffixLength {
		s = strings.Repeat("0", suffixLength-len(s)) + s
	}
	return s
}
