package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"askstack/internal/featureflags"
	"askstack/internal/forms"
	"askstack/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionTTL  = 24 * time.Hour
	rememberTTL = 30 * 24 * time.Hour
)

// RegisterForm handles GET /register. It describes the registration fields so
// clients can render the form; the CSRF cookie is issued by the middleware.
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields": []string{"username", "email", "password", "password2", "is_teacher"},
	})
}

// Register handles POST /register
func (s *Server) Register(c *fiber.Ctx) error {
	if s.featureFlags.Enabled(featureflags.FlagSignupsDisabled, 0) {
		return respondError(c, models.NewRejectionError("Registration is currently disabled"))
	}

	var req struct {
		Username  string `json:"username" form:"username"`
		Email     string `json:"email" form:"email"`
		Password  string `json:"password" form:"password"`
		Password2 string `json:"password2" form:"password2"`
		IsTeacher bool   `json:"is_teacher" form:"is_teacher"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	fieldErrs := forms.Validate(
		forms.Field{Name: "username", Value: req.Username, Rules: []forms.Rule{forms.Required(), forms.Username()}},
		forms.Field{Name: "email", Value: req.Email, Rules: []forms.Rule{forms.Required(), forms.Email()}},
		forms.Field{Name: "password", Value: req.Password, Rules: []forms.Rule{forms.Required()}},
		forms.Field{Name: "password2", Value: req.Password2, Rules: []forms.Rule{forms.Required(), forms.EqualTo(req.Password, "password")}},
	)
	if fieldErrs != nil {
		return respondError(c, models.NewFieldValidationError(fieldErrs))
	}

	// Uniqueness checks surface as the same field-level error shape.
	existing, err := s.userRepo.GetByUsername(c.Context(), req.Username)
	if err != nil {
		return respondError(c, err)
	}
	if existing != nil {
		return respondError(c, models.NewFieldValidationError(
			map[string]string{"username": "Please use a different username."}))
	}

	existing, err = s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	if existing != nil {
		return respondError(c, models.NewFieldValidationError(
			map[string]string{"email": "Please use a different email address."}))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		IsTeacher:    req.IsTeacher,
	}
	if createErr := s.userRepo.Create(c.Context(), user); createErr != nil {
		return respondError(c, createErr)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Congratulations, you are now a registered user!",
		"user":    user,
	})
}

// LoginForm handles GET /login. The ?next= parameter is echoed back so the
// client can replay it on the POST.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"fields": []string{"username", "password", "remember"},
		"next":   safeNext(c.Query("next")),
	})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
		Remember bool   `json:"remember" form:"remember"`
		Next     string `json:"next" form:"next"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	fieldErrs := forms.Validate(
		forms.Field{Name: "username", Value: req.Username, Rules: []forms.Rule{forms.Required()}},
		forms.Field{Name: "password", Value: req.Password, Rules: []forms.Rule{forms.Required()}},
	)
	if fieldErrs != nil {
		return respondError(c, models.NewFieldValidationError(fieldErrs))
	}

	user, err := s.userRepo.GetByUsername(c.Context(), req.Username)
	if err != nil {
		return respondError(c, err)
	}
	// One generic message for unknown user and wrong password alike.
	if user == nil {
		return respondError(c, models.NewRejectionError("Invalid username or password"))
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); cmpErr != nil {
		return respondError(c, models.NewRejectionError("Invalid username or password"))
	}

	ttl := sessionTTL
	if req.Remember {
		ttl = rememberTTL
	}
	token, err := s.generateToken(user.ID, user.Username, ttl)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})

	next := req.Next
	if next == "" {
		next = c.Query("next")
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
		"next":  safeNext(next),
	})
}

// Logout handles GET /logout. The session token's jti is blacklisted until
// the token would have expired, then the cookie is cleared.
func (s *Server) Logout(c *fiber.Ctx) error {
	tokenString := c.Cookies(sessionCookieName)
	if tokenString == "" {
		authHeader := c.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}

	if tokenString != "" && s.redis != nil {
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				jti, _ := claims["jti"].(string)
				exp, _ := claims["exp"].(float64)
				if jti != "" {
					ttl := time.Until(time.Unix(int64(exp), 0))
					if ttl > 0 {
						s.redis.Set(c.Context(), "blacklist:"+jti, "1", ttl)
					}
				}
			}
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// generateToken creates a session JWT for the given user.
func (s *Server) generateToken(userID uint, username string, ttl time.Duration) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      "askstack-api",
		"aud":      "askstack-client",
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      s.generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID so individual sessions can be revoked.
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
