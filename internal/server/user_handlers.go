package server

import (
	"askstack/internal/forms"
	"askstack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UserPage handles GET /user/:username: the profile plus that user's
// questions, newest first.
func (s *Server) UserPage(c *fiber.Ctx) error {
	username := c.Params("username")

	user, err := s.userRepo.GetByUsername(c.Context(), username)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, models.NewNotFoundError("User", username))
	}

	p := s.parsePagination(c)
	questions, total, err := s.questionRepo.ListByAuthor(c.Context(), user.ID, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	followers, err := s.followRepo.CountFollowers(c.Context(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	following, err := s.followRepo.CountFollowing(c.Context(), user.ID)
	if err != nil {
		return respondError(c, err)
	}

	viewerID := currentUserID(c)
	isFollowing := false
	if viewerID != 0 && viewerID != user.ID {
		isFollowing, err = s.followRepo.IsFollowing(c.Context(), viewerID, user.ID)
		if err != nil {
			return respondError(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"user":         user,
		"questions":    models.NewPage(questions, p.Page, p.PerPage, total),
		"followers":    followers,
		"following":    following,
		"is_following": isFollowing,
		"is_self":      viewerID == user.ID,
	})
}

// EditProfileForm handles GET /edit_profile: the current values to prefill
// the form with.
func (s *Server) EditProfileForm(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"username": user.Username,
		"about_me": user.AboutMe,
	})
}

// EditProfile handles POST /edit_profile. Changing the username checks for
// collisions against other users only; keeping one's own name is always fine.
func (s *Server) EditProfile(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		AboutMe  string `json:"about_me" form:"about_me"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	fieldErrs := forms.Validate(
		forms.Field{Name: "username", Value: req.Username, Rules: []forms.Rule{forms.Required(), forms.Username()}},
		forms.Field{Name: "about_me", Value: req.AboutMe, Rules: []forms.Rule{forms.Length(0, 140)}},
	)
	if fieldErrs != nil {
		return respondError(c, models.NewFieldValidationError(fieldErrs))
	}

	user, err := s.userRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	if req.Username != user.Username {
		existing, err := s.userRepo.GetByUsername(c.Context(), req.Username)
		if err != nil {
			return respondError(c, err)
		}
		if existing != nil {
			return respondError(c, models.NewFieldValidationError(
				map[string]string{"username": "Please use a different username."}))
		}
	}

	user.Username = req.Username
	user.AboutMe = req.AboutMe
	if err := s.userRepo.Update(c.Context(), user); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Your changes have been saved.",
		"user":    user,
	})
}
