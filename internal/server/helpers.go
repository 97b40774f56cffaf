package server

import (
	"errors"
	"strings"

	"askstack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPerPage = 100

// Pagination holds the parsed page/per_page query parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// parsePagination extracts the 1-based page number and page size. The page
// size defaults to QUESTIONS_PER_PAGE and is capped at maxPerPage.
func (s *Server) parsePagination(c *fiber.Ctx) Pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	perPage := c.QueryInt("per_page", s.config.QuestionsPerPage)
	if perPage <= 0 {
		perPage = s.config.QuestionsPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return Pagination{Page: page, PerPage: perPage}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// currentUserID returns the authenticated user's ID set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// respondError maps an application error to its HTTP status and writes the
// standardized error body.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// sameOriginNext reports whether a post-login redirect target is a relative
// same-origin path. Absolute URLs and scheme-relative ("//host") targets are
// rejected so login cannot be used as an open redirect.
func sameOriginNext(next string) bool {
	if next == "" || next[0] != '/' {
		return false
	}
	if strings.HasPrefix(next, "//") {
		return false
	}
	if strings.ContainsAny(next, "\\\r\n") {
		return false
	}
	return true
}

// safeNext returns the redirect target to use after login.
func safeNext(next string) string {
	if sameOriginNext(next) {
		return next
	}
	return "/"
}

// splitSearchTerms splits the free-form search input into whitespace-separated
// tag terms.
func splitSearchTerms(input string) []string {
	return strings.Fields(input)
}
