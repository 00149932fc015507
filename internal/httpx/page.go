// Package httpx holds small HTTP-layer helpers shared across handlers.
package httpx

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page is the page/perPage pair parsed from query parameters, shared by
// the paginated GET list endpoints (GET /user, GET /format). The query
// engine reads page/perPage from its JSON request body and applies its own
// rule (internal/query), not this one.
type Page struct {
	Page    int
	PerPage int
}

// ParsePage reads "page" and "perPage" from c's query string, defaulting
// perPage to defaultPerPage and clamping it to [1, maxPerPage]. A negative
// or non-numeric page is treated as 0.
func ParsePage(c *gin.Context, defaultPerPage, maxPerPage int) Page {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 0 {
		page = 0
	}

	perPage, err := strconv.Atoi(c.Query("perPage"))
	if err != nil || perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Page{Page: page, PerPage: perPage}
}

// Offset returns the number of items before this page (Page * PerPage).
func (p Page) Offset() int {
	return p.Page * p.PerPage
}
