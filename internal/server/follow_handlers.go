package server

import (
	"fmt"

	"askstack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FollowUser handles POST /follow/:username. Following an already-followed
// user is a no-op; following yourself is rejected.
func (s *Server) FollowUser(c *fiber.Ctx) error {
	target, err := s.resolveFollowTarget(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.followRepo.Follow(c.Context(), currentUserID(c), target.ID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("You are now following %s!", target.Username),
	})
}

// UnfollowUser handles POST /unfollow/:username. Unfollowing a user you do
// not follow is a no-op; unfollowing yourself is rejected.
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	target, err := s.resolveFollowTarget(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.followRepo.Unfollow(c.Context(), currentUserID(c), target.ID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("You are no longer following %s.", target.Username),
	})
}

// resolveFollowTarget looks up the :username parameter and rejects
// self-targeting.
func (s *Server) resolveFollowTarget(c *fiber.Ctx) (*models.User, error) {
	username := c.Params("username")

	target, err := s.userRepo.GetByUsername(c.Context(), username)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	if target.ID == currentUserID(c) {
		return nil, models.NewRejectionError("You cannot follow yourself!")
	}
	return target, nil
}
