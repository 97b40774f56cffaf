package server

import (
	"strings"

	"askstack/internal/featureflags"
	"askstack/internal/forms"
	"askstack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Home handles GET / and GET /index: the authenticated user's feed of
// questions from followed authors plus their own, newest first.
func (s *Server) Home(c *fiber.Ctx) error {
	userID := currentUserID(c)
	p := s.parsePagination(c)

	questions, total, err := s.questionRepo.ListFeed(c.Context(), userID, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"questions": models.NewPage(questions, p.Page, p.PerPage, total),
	})
}

// AskQuestion handles POST / and POST /index. Tags come in as one
// comma-separated string.
func (s *Server) AskQuestion(c *fiber.Ctx) error {
	var req struct {
		Body string `json:"body" form:"body"`
		Tags string `json:"tags" form:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	fieldErrs := forms.Validate(
		forms.Field{Name: "body", Value: req.Body, Rules: []forms.Rule{
			forms.Required(), forms.Length(1, models.MaxBodyLength)}},
	)
	if fieldErrs != nil {
		return respondError(c, models.NewFieldValidationError(fieldErrs))
	}

	question := &models.Question{
		Body:   req.Body,
		UserID: currentUserID(c),
	}
	if err := s.questionRepo.CreateWithTags(c.Context(), question, strings.Split(req.Tags, ",")); err != nil {
		return respondError(c, err)
	}

	created, err := s.questionRepo.GetByID(c.Context(), question.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Your question is now live!",
		"question": created,
	})
}

// Explore handles GET /explore: every question, newest first, plus the tag
// index ordered by name.
func (s *Server) Explore(c *fiber.Ctx) error {
	p := s.parsePagination(c)

	questions, total, err := s.questionRepo.ListAll(c.Context(), p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	tags, err := s.tagRepo.ListAll(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"questions": models.NewPage(questions, p.Page, p.PerPage, total),
		"tags":      tags,
	})
}

// QuestionPage handles GET /q/:id: the question with its paginated replies.
func (s *Server) QuestionPage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	question, err := s.questionRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	p := s.parsePagination(c)
	replies, total, err := s.questionRepo.ListReplies(c.Context(), id, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"question": question,
		"replies":  models.NewPage(replies, p.Page, p.PerPage, total),
	})
}

// CreateReply handles POST /q/:id.
func (s *Server) CreateReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	// The question must exist before we accept a reply to it.
	if _, err := s.questionRepo.GetByID(c.Context(), id); err != nil {
		return respondError(c, err)
	}

	var req struct {
		Body string `json:"body" form:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	fieldErrs := forms.Validate(
		forms.Field{Name: "body", Value: req.Body, Rules: []forms.Rule{
			forms.Required(), forms.Length(1, models.MaxBodyLength)}},
	)
	if fieldErrs != nil {
		return respondError(c, models.NewFieldValidationError(fieldErrs))
	}

	reply := &models.Reply{
		Body:       req.Body,
		UserID:     currentUserID(c),
		QuestionID: id,
	}
	if err := s.questionRepo.CreateReply(c.Context(), reply); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Your reply has been posted.",
		"reply":   reply,
	})
}

// TagPage handles GET /tag/:id: questions carrying the tag, newest first.
func (s *Server) TagPage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	tag, err := s.tagRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	p := s.parsePagination(c)
	questions, total, err := s.questionRepo.ListByTag(c.Context(), id, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"tag":       tag,
		"questions": models.NewPage(questions, p.Page, p.PerPage, total),
	})
}

// Search handles POST /search. The `search` field holds whitespace-separated
// tag terms; every term must name an existing tag, and the result is the set
// of questions carrying ALL of them.
func (s *Server) Search(c *fiber.Ctx) error {
	if s.featureFlags.Enabled(featureflags.FlagTagSearchDisabled, currentUserID(c)) {
		return respondError(c, models.NewRejectionError("Search is currently disabled"))
	}

	var req struct {
		Search string `json:"search" form:"search"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	terms := splitSearchTerms(req.Search)
	if len(terms) == 0 {
		return respondError(c, models.NewFieldValidationError(
			map[string]string{"search": "this field is required"}))
	}

	// Every term must resolve to an existing tag.
	for _, term := range terms {
		tag, err := s.tagRepo.GetByName(c.Context(), term)
		if err != nil {
			return respondError(c, err)
		}
		if tag == nil {
			return respondError(c, models.NewNotFoundError("Tag", term))
		}
	}

	p := s.parsePagination(c)
	questions, total, err := s.questionRepo.SearchByTagNames(c.Context(), terms, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"search":    req.Search,
		"questions": models.NewPage(questions, p.Page, p.PerPage, total),
	})
}
