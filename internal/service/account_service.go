package service

import (
	"context"
	"errors"
	"time"

	"rosegold/market-service/internal/auth"
	"rosegold/market-service/internal/models"
	"rosegold/market-service/internal/repository"

	"github.com/sirupsen/logrus"
)

// Mailer is the outbound email surface the account flows need.
type Mailer interface {
	SendVerificationCode(to, code string) error
	SendPasswordResetCode(to, code string) error
	RelaySupportMessage(from, subject, body string) error
}

// Registration is a new-user submission, pre-validation.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zipcode  string `json:"zipcode"`
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	AccountID    int64  `json:"accountId"`
	Username     string `json:"username"`
	AvatarURL    string `json:"avatarUrl"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AccountService interface {
	Register(ctx context.Context, reg Registration, avatarURL string) error
	ConfirmAccount(ctx context.Context, email, code string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	ChangeUsername(ctx context.Context, oldName, newName string) error
	ChangeAvatar(ctx context.Context, accountID int64, avatarURL string) error
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	ReportUser(ctx context.Context, reporterID, reportedID int64, reason string) error
	RegisterDevice(ctx context.Context, accountID int64, deviceToken string) error
	EmailSupport(ctx context.Context, fromEmail, subject, body string) error
	ForgotPassword(ctx context.Context, email string) error
	CheckResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type accountService struct {
	repository repository.AccountRepository
	tokens     *auth.TokenManager
	mailer     Mailer
	resetTTL   time.Duration
	logger     *logrus.Logger
}

func NewAccountService(repo repository.AccountRepository, tokens *auth.TokenManager, mailer Mailer, resetTTL time.Duration, logger *logrus.Logger) AccountService {
	return &accountService{
		repository: repo,
		tokens:     tokens,
		mailer:     mailer,
		resetTTL:   resetTTL,
		logger:     logger,
	}
}

// Register stores the submission in the unverified table and emails a
// confirmation code. The account cannot log in until it confirms.
func (s *accountService) Register(ctx context.Context, reg Registration, avatarURL string) error {
	passwordHash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return err
	}

	code, err := auth.GenerateCode(16)
	if err != nil {
		return err
	}

	acct := &models.UnverifiedAccount{
		Username:         reg.Username,
		Email:            reg.Email,
		PasswordHash:     passwordHash,
		AvatarURL:        avatarURL,
		Address:          reg.Address,
		City:             reg.City,
		State:            reg.State,
		Zipcode:          reg.Zipcode,
		VerificationCode: code,
	}

	if err := s.repository.CreateUnverified(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrTaken
		}
		s.logger.WithError(err).Error("Failed to create unverified account")
		return err
	}

	if err := s.mailer.SendVerificationCode(reg.Email, code); err != nil {
		s.logger.WithFields(logrus.Fields{
			"username": reg.Username,
		}).WithError(err).Error("Failed to send verification email")
		return err
	}

	s.logger.WithField("username", reg.Username).Info("New user added to unverified table")
	return nil
}

// ConfirmAccount checks the emailed code and, on match, promotes the
// registration into the accounts table.
func (s *accountService) ConfirmAccount(ctx context.Context, email, code string) (*models.Account, error) {
	unverified, err := s.repository.GetUnverifiedByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if unverified.VerificationCode != code {
		s.logger.WithField("email", email).Info("Incorrect verification code submitted")
		return nil, ErrBadCode
	}

	acct, err := s.repository.Promote(ctx, email)
	if err != nil {
		s.logger.WithError(err).Error("Failed to promote unverified account")
		return nil, err
	}

	s.logger.WithField("username", acct.Username).Info("New user verified their account")
	return acct, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	acct, err := s.repository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(acct.PasswordHash, password) {
		return nil, ErrBadCredentials
	}

	accessToken, refreshToken, err := s.tokens.GenerateTokens(acct.ID, acct.Username)
	if err != nil {
		return nil, err
	}

	if err := s.repository.UpdateRefreshToken(ctx, acct.ID, refreshToken); err != nil {
		s.logger.WithError(err).Error("Failed to store refresh token")
		return nil, err
	}

	s.logger.WithField("username", acct.Username).Info("User logged in")

	return &LoginResult{
		AccountID:    acct.ID,
		Username:     acct.Username,
		AvatarURL:    acct.AvatarURL,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The token
// must also match the one stored on the account row, so a stolen token dies
// on the next login.
func (s *accountService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrBadCredentials
	}

	acct, err := s.repository.GetByID(ctx, claims.AccountID)
	if err != nil {
		return "", ErrBadCredentials
	}
	if acct.RefreshToken != refreshToken {
		return "", ErrBadCredentials
	}

	accessToken, _, err := s.tokens.GenerateTokens(acct.ID, acct.Username)
	if err != nil {
		return "", err
	}

	return accessToken, nil
}

func (s *accountService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	return s.repository.UsernameAvailable(ctx, username)
}

func (s *accountService) ChangeUsername(ctx context.Context, oldName, newName string) error {
	err := s.repository.UpdateUsername(ctx, oldName, newName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrTaken
		}
		if errors.Is(err, repository.ErrNoAccount) {
			return ErrNotFound
		}
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"old_username": oldName,
		"new_username": newName,
	}).Info("Username changed")
	return nil
}

func (s *accountService) ChangeAvatar(ctx context.Context, accountID int64, avatarURL string) error {
	return s.repository.UpdateAvatar(ctx, accountID, avatarURL)
}

func (s *accountService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	acct, err := s.repository.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return acct, nil
}

func (s *accountService) DeleteAccount(ctx context.Context, accountID int64) error {
	return s.repository.Delete(ctx, accountID)
}

func (s *accountService) ReportUser(ctx context.Context, reporterID, reportedID int64, reason string) error {
	if err := s.repository.ReportUser(ctx, reporterID, reportedID, reason); err != nil {
		return err
	}

	// Support gets a heads-up so reports do not sit unseen in the table.
	if err := s.mailer.RelaySupportMessage("market-service", "User Reported",
		"An account was reported. Check the user_reports table for details."); err != nil {
		s.logger.WithError(err).Warn("Failed to email support about a user report")
	}

	return nil
}

// RegisterDevice stores the APNs device token used to nudge this account
// when a message lands in its backlog.
func (s *accountService) RegisterDevice(ctx context.Context, accountID int64, deviceToken string) error {
	return s.repository.SetDeviceToken(ctx, accountID, deviceToken)
}

func (s *accountService) EmailSupport(ctx context.Context, fromEmail, subject, body string) error {
	return s.mailer.RelaySupportMessage(fromEmail, subject, body)
}

func (s *accountService) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.repository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			// Do not reveal which emails exist.
			return nil
		}
		return err
	}

	code, err := auth.GenerateCode(4)
	if err != nil {
		return err
	}

	if err := s.repository.CreatePasswordReset(ctx, acct.ID, code); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetCode(email, code); err != nil {
		s.logger.WithError(err).Error("Failed to send password reset email")
		return err
	}

	return nil
}

func (s *accountService) CheckResetCode(ctx context.Context, email, code string) error {
	_, err := s.validResetCode(ctx, email, code)
	return err
}

func (s *accountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	acct, err := s.validResetCode(ctx, email, code)
	if err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repository.UpdatePassword(ctx, acct.ID, passwordHash); err != nil {
		return err
	}
	if err := s.repository.DeletePasswordReset(ctx, acct.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to remove used password reset code")
	}

	s.logger.WithField("username", acct.Username).Info("Password reset completed")
	return nil
}

func (s *accountService) validResetCode(ctx context.Context, email, code string) (*models.Account, error) {
	acct, err := s.repository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	reset, err := s.repository.GetPasswordReset(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoAccount) {
			return nil, ErrBadCode
		}
		return nil, err
	}

	if reset.Code != code || time.Since(reset.CreatedAt) > s.resetTTL {
		return nil, ErrBadCode
	}

	return acct, nil
}
