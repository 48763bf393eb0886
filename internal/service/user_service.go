package service

import (
	"context"
	"errors"
	"strings"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrEmailExists = errors.New("email already exists")

// UserService manages accounts: customer self-registration and the seeded admin.
type UserService interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)
	EnsureAdmin(ctx context.Context, email, password string) (*model.User, bool, error)
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
}

type userService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, log *zap.Logger) UserService {
	return &userService{userRepo: userRepo, log: log.Named("users")}
}

// Register creates a customer account. Staff and admin accounts are not
// self-service.
func (s *userService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, &Error{Kind: ErrValidation, Detail: ErrEmailExists, Field: "email", Message: ErrEmailExists.Error()}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user := &model.User{
		Email:       email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Role:        model.RoleCustomer,
		IsActive:    true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("customer registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// EnsureAdmin creates the admin account when it does not exist yet. The bool
// reports whether a user was created.
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (*model.User, bool, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	admin := &model.User{
		Email:    email,
		FullName: "Administrator",
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	admin.CreatedBy = "system"
	if err := admin.SetPassword(password); err != nil {
		return nil, false, err
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return nil, false, err
	}
	s.log.Info("admin user seeded", zap.String("email", email))
	return admin, true, nil
}
