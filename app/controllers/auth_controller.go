package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/cornerstone-hq/cornerstone/app/models"
	"github.com/cornerstone-hq/cornerstone/app/repository"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/env"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/hcaptcha"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/memberships"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/notifications"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/session"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/utils"
)

const pendingOTPUserKey = "pending_otp_user_id"

type registerRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a user, resolves any pending invitations for
// the address and starts a session.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	if hcaptcha.Enabled() {
		if ok, err := hcaptcha.Verify(req.CaptchaToken); err != nil || !ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "captcha verification failed"})
		}
	}

	user, err := models.CreateUser(req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(user.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "email is already registered"})
	}
	if err := repo.Create(user); err != nil {
		return jsonError(c, err)
	}

	// Email-only invitations sent before signup bind to the new user now.
	// Registration already succeeded; the invitation links still work.
	svc := memberships.NewServiceFromDB(database.GetDB())
	if _, err := svc.ResolvePendingInvitations(c.Context(), user, requestInfo(c)); err != nil {
		log.Warnf("resolving invitations for user %d: %v", user.ID, err)
	}

	notifications.Welcome(user)

	if err := startSession(c, user); err != nil {
		return jsonError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(userResponse(user))
}

// HandleAuthLogin verifies credentials. Users with two-factor enabled get a
// pending session and must confirm a TOTP code before being logged in.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	// Do not reveal whether the email or the password was wrong.
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	if user.OTPEnabled {
		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			return jsonError(c, err)
		}
		sess.Set(pendingOTPUserKey, user.ID)
		if err := sess.Save(); err != nil {
			return jsonError(c, err)
		}
		return c.JSON(fiber.Map{"two_factor_required": true})
	}

	if err := startSession(c, user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(userResponse(user))
}

// HandleAuthLoginOTP completes a two-factor login with a TOTP code.
func HandleAuthLoginOTP(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, err)
	}
	userID, ok := sess.Get(pendingOTPUserKey).(uint)
	if !ok || userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "no pending two-factor login"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "no pending two-factor login"})
	}
	if !totp.Validate(req.Code, user.OTPSecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid code"})
	}

	sess.Delete(pendingOTPUserKey)
	if err := sess.Save(); err != nil {
		return jsonError(c, err)
	}

	if err := startSession(c, user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(userResponse(user))
}

// HandleAuthLogout destroys the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"logged_out": true})
}

// HandleMagicLinkRequest issues a login link for a known email. The response
// is identical for unknown addresses.
func HandleMagicLinkRequest(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err == nil {
		token, err := user.GenerateMagicLinkToken()
		if err == nil {
			if err := repo.Update(user); err == nil {
				notifications.MagicLink(user, token)
			}
		}
	}

	return c.JSON(fiber.Map{"message": "if the address exists, a login link is on its way"})
}

// HandleMagicLinkConsume logs in with a magic-link token. Tokens are single
// use and invalidated on success.
func HandleMagicLinkConsume(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid or expired link"})
	}

	db := database.GetDB()
	var user models.User
	err := db.Where("login_token_digest = ?", models.HashMagicLinkToken(token)).First(&user).Error
	if err != nil || !user.ValidMagicLinkToken(token) {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, err)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid or expired link"})
	}

	user.ClearMagicLinkToken()
	if err := db.Save(&user).Error; err != nil {
		return jsonError(c, err)
	}

	if err := startSession(c, &user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(userResponse(&user))
}

// HandleOTPSetup generates a TOTP secret for the logged-in user. The secret
// only becomes active after HandleOTPActivate confirms a valid code.
func HandleOTPSetup(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      env.GetEnv("APP_NAME", "Cornerstone"),
		AccountName: user.Email,
	})
	if err != nil {
		return jsonError(c, err)
	}

	user.OTPSecret = key.Secret()
	user.OTPEnabled = false
	if err := repo.Update(user); err != nil {
		return jsonError(c, err)
	}

	return c.JSON(fiber.Map{
		"secret":      key.Secret(),
		"otpauth_url": key.URL(),
	})
}

// HandleOTPActivate enables two-factor after verifying one code against the
// pending secret.
func HandleOTPActivate(c *fiber.Ctx) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}
	if user.OTPSecret == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "run two-factor setup first"})
	}
	if !totp.Validate(req.Code, user.OTPSecret) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "invalid code"})
	}

	user.OTPEnabled = true
	if err := repo.Update(user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"otp_enabled": true})
}

// HandleOTPDisable turns two-factor off after a password check.
func HandleOTPDisable(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	uc := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}
	if !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	user.OTPEnabled = false
	user.OTPSecret = ""
	if err := repo.Update(user); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(fiber.Map{"otp_enabled": false})
}

// HandleMe returns the current user.
func HandleMe(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(userResponse(user))
}

// startSession writes the authenticated session and stamps last login.
func startSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}

	sess.Set(usercontext.KeyAuthenticated, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUserEmail, user.Email)
	sess.Set(usercontext.KeyUserName, user.Name())
	if err := sess.Save(); err != nil {
		return err
	}

	now := time.Now()
	user.LastLoginAt = &now
	return repository.GetGlobalFactory().GetUserRepository().Update(user)
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":            user.ID,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"email":         user.Email,
		"avatar_url":    utils.GetGravatarURL(user.Email, 200),
		"otp_enabled":   user.OTPEnabled,
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(user.LastLoginAt),
	}
}
