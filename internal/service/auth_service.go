package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error
	Authenticate(ctx context.Context, tokenString string) (*model.User, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	issuer   *jwt.Issuer
	hub      Broadcaster
	log      *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, issuer *jwt.Issuer, hub Broadcaster, log *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		issuer:   issuer,
		hub:      hub,
		log:      log.Named("auth"),
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Generate JWT token
	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.FullName, string(user.Role))
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	if err := s.userRepo.UpdateLastSeen(ctx, user.ID); err != nil {
		s.log.Warn("update last seen", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	s.log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))

	return &LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return errors.New("failed to hash new password")
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, user.Password)
}

// Authenticate resolves a bearer token to an active user.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.issuer.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateLastSeen(ctx, userID); err != nil {
		return err
	}
	if s.hub == nil {
		return nil
	}

	payload := map[string]interface{}{
		"type":         "user_status_update",
		"user_id":      userID.String(),
		"status":       "online",
		"last_seen_at": time.Now(),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.hub.Publish(msg)
	return nil
}
