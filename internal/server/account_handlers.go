package server

import (
	"errors"
	"io"
	"strconv"

	"rosegold/market-service/internal/service"
	"rosegold/market-service/internal/storage"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleRegisterUser(c *fiber.Ctx) error {
	reg := service.Registration{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Address:  c.FormValue("address"),
		City:     c.FormValue("city"),
		State:    c.FormValue("state"),
		Zipcode:  c.FormValue("zipcode"),
	}

	if err := s.validate.Struct(reg); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	avatarURL := ""
	if data, err := formFileBytes(c, "avatar"); err == nil {
		avatarURL, err = s.images.SaveAvatar(reg.Username, data)
		if err != nil {
			if errors.Is(err, storage.ErrNotJPEG) {
				return c.Status(fiber.StatusBadRequest).JSON(fail(err.Error()))
			}
			s.logger.WithError(err).Error("Failed to save avatar image")
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	if err := s.accounts.Register(c.Context(), reg, avatarURL); err != nil {
		if errors.Is(err, service.ErrTaken) {
			return c.Status(fiber.StatusConflict).JSON(fail("username or email taken"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fail("user not created"))
	}

	return c.Status(fiber.StatusOK).JSON(ok("user created"))
}

func (s *Server) handleConfirmAccount(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"usersEmail" validate:"required,email"`
		Code  string `json:"verificationCode" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	acct, err := s.accounts.ConfirmAccount(c.Context(), body.Email, body.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fail("user not present"))
		case errors.Is(err, service.ErrBadCode):
			return c.Status(fiber.StatusUnauthorized).JSON(fail("codes don't match"))
		default:
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(ok(fiber.Map{"accountId": acct.ID}))
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	result, err := s.accounts.Login(c.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadCredentials) {
			return c.Status(fiber.StatusNotFound).JSON(fail("couldn't find your login info"))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fail("an internal error occurred. try again later"))
	}

	return c.JSON(ok(result))
}

func (s *Server) handleRefreshToken(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}

	accessToken, err := s.accounts.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fail("unauthorized"))
	}

	return c.JSON(ok(fiber.Map{"accessToken": accessToken}))
}

func (s *Server) handleCheckUsername(c *fiber.Ctx) error {
	username := c.Query("newUsername")
	if username == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	available, err := s.accounts.UsernameAvailable(c.Context(), username)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(fiber.Map{"available": available}))
}

func (s *Server) handleChangeUsername(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	newUsername := c.Query("newUsername")
	if newUsername == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if err := s.accounts.ChangeUsername(c.Context(), claims.Username, newUsername); err != nil {
		if errors.Is(err, service.ErrTaken) {
			return c.Status(fiber.StatusConflict).JSON(fail("username taken"))
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	// Keep the image tree in step with the new name.
	if err := s.images.RenameAvatar(claims.Username, newUsername); err != nil {
		s.logger.WithError(err).Warn("Failed to rename avatar image")
	}
	if err := s.images.RenameOwnerFolder(claims.Username, newUsername); err != nil {
		s.logger.WithError(err).Warn("Failed to rename item image folder")
	}

	return c.JSON(ok(true))
}

func (s *Server) handleChangeAvatar(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	data, err := formFileBytes(c, "avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("missing avatar image"))
	}

	avatarURL, err := s.images.SaveAvatar(claims.Username, data)
	if err != nil {
		if errors.Is(err, storage.ErrNotJPEG) {
			return c.Status(fiber.StatusBadRequest).JSON(fail(err.Error()))
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if err := s.accounts.ChangeAvatar(c.Context(), claims.AccountID, avatarURL); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(avatarURL))
}

func (s *Server) handleReportUser(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		ReportedUserID int64  `json:"reportedUserId" validate:"required"`
		Reason         string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.accounts.ReportUser(c.Context(), claims.AccountID, body.ReportedUserID, body.Reason); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fail("failed"))
	}

	return c.JSON(ok("success"))
}

func (s *Server) handleRegisterDevice(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		DeviceToken string `json:"deviceToken" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.accounts.RegisterDevice(c.Context(), claims.AccountID, body.DeviceToken); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleEmailSupport(c *fiber.Ctx) error {
	var body struct {
		FromEmail string `json:"fromEmail" validate:"required,email"`
		Subject   string `json:"subject" validate:"required"`
		Message   string `json:"message" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.accounts.EmailSupport(c.Context(), body.FromEmail, body.Subject, body.Message); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok("sent"))
}

func (s *Server) handleUserItems(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	items, err := s.items.GetItemsForAccount(c.Context(), claims.AccountID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(items))
}

// handleItemsForAccount lists any account's items with their categories.
// This is how a buyer browses a seller's listings, so the id comes from the
// query, not from the caller's claims.
func (s *Server) handleItemsForAccount(c *fiber.Ctx) error {
	accountID, err := queryID(c, "accountId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("no account id provided"))
	}

	items, err := s.items.GetItemsForAccount(c.Context(), accountID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(items))
}

func (s *Server) handleAddressDetails(c *fiber.Ctx) error {
	accountID, err := queryID(c, "accountId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("no account id provided"))
	}

	acct, err := s.accounts.GetAccount(c.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(fiber.Map{
		"address": acct.Address,
		"zipcode": acct.Zipcode,
	}))
}

func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	if err := s.accounts.DeleteAccount(c.Context(), claims.AccountID); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	// The row is gone; the stored images would only sit orphaned.
	if err := s.images.DeleteAvatar(claims.Username); err != nil {
		s.logger.WithError(err).Warn("Failed to remove deleted user's avatar")
	}
	if err := s.images.DeleteOwnerImages(claims.Username); err != nil {
		s.logger.WithError(err).Warn("Failed to remove deleted user's item images")
	}

	s.registry.Unregister(claims.AccountID)
	return c.JSON(ok(true))
}

func (s *Server) handleForgotPassword(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.accounts.ForgotPassword(c.Context(), body.Email); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	// Same answer whether or not the email exists.
	return c.JSON(ok("if that email exists, a code was sent"))
}

func (s *Server) handleCheckResetCode(c *fiber.Ctx) error {
	var body struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}

	if err := s.accounts.CheckResetCode(c.Context(), body.Email, body.Code); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fail("codes don't match"))
	}

	return c.JSON(ok(true))
}

func (s *Server) handleResetPassword(c *fiber.Ctx) error {
	var body struct {
		Email       string `json:"email" validate:"required,email"`
		Code        string `json:"code" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	if err := s.accounts.ResetPassword(c.Context(), body.Email, body.Code, body.NewPassword); err != nil {
		if errors.Is(err, service.ErrBadCode) || errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fail("codes don't match"))
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(true))
}

// formFileBytes reads one uploaded file out of a multipart form.
func formFileBytes(c *fiber.Ctx, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// queryID parses an int64 query parameter.
func queryID(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Query(name), 10, 64)
}
