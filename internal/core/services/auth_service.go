package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/config"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/jwt"
	"easymoney-loans/internal/pkg/password"

	"github.com/google/uuid"
)

// Auth errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrDirectoryOnlyUser   = errors.New("this user can only authenticate via the directory")
	ErrRefreshTokenInvalid = errors.New("refresh token is invalid or revoked")
)

// LoginInput carries login credentials
type LoginInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthMethod string `json:"auth_method"`
}

// LoginResult is a successful authentication
type LoginResult struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	User         *models.UserResponse `json:"user"`
	AuthMethod   string               `json:"auth_method"`
}

// AuthService authenticates users locally or against the directory and
// manages refresh-token rotation
type AuthService struct {
	userRepo     *repositories.UserRepository
	tokenRepo    *repositories.RefreshTokenRepository
	settings     *SettingsService
	directory    *DirectoryService
	auditService *AuditService
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo *repositories.UserRepository,
	tokenRepo *repositories.RefreshTokenRepository,
	settings *SettingsService,
	directory *DirectoryService,
	auditService *AuditService,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		settings:     settings,
		directory:    directory,
		auditService: auditService,
	}
}

// Login tries the directory first when it is enabled or explicitly
// requested, then falls back to the local password. Directory failures
// never surface to the caller; the local check is the answer then.
// First directory login auto-provisions the user.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	adConfig, err := s.settings.GetADConfig(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to load directory config: %v", err)
	}

	var user *models.User
	adAuthenticated := false

	tryDirectory := input.AuthMethod == string(domain.AuthDirectory) ||
		(adConfig.Enabled && input.AuthMethod != string(domain.AuthLocal))
	if tryDirectory {
		identity, dirErr := s.directory.Authenticate(input.Username, input.Password, adConfig)
		if dirErr == nil && identity != nil {
			adAuthenticated = true
			user, err = s.provisionDirectoryUser(ctx, identity, adConfig)
			if err != nil {
				return nil, err
			}
		}
	}

	if !adAuthenticated {
		user, err = s.userRepo.GetByUsername(ctx, input.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, ErrInvalidCredentials
		}
		if user.PasswordHash == "" {
			return nil, ErrDirectoryOnlyUser
		}
		if !password.Verify(input.Password, user.PasswordHash) {
			return nil, ErrInvalidCredentials
		}
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	result.AuthMethod = string(domain.AuthLocal)
	if adAuthenticated {
		result.AuthMethod = string(domain.AuthDirectory)
	}

	if _, err := s.auditService.Append(ctx, AuditEntry{
		EntityType: "user",
		EntityID:   user.ID,
		Action:     "login",
		After:      map[string]any{"auth_method": result.AuthMethod},
		Actor:      actorFromUser(user),
	}); err != nil {
		log.Printf("⚠️ Failed to audit login for %s: %v", user.Username, err)
	}
	return result, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued. A revoked or expired token yields nothing.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, config.AppConfig.JWT.RefreshSecret)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	stored, err := s.tokenRepo.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if stored == nil || stored.IsRevoked() || stored.IsExpired() {
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrRefreshTokenInvalid
	}

	if err := s.tokenRepo.Revoke(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// Me returns the profile behind an actor
func (s *AuthService) Me(ctx context.Context, actorID string) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user.ToResponse(), nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*LoginResult, error) {
	cfg := config.AppConfig.JWT
	accessToken, err := jwt.GenerateAccessToken(user.ID, user.Username, user.FullName, user.Role, user.Branch, cfg.Secret, cfg.AccessTokenMins)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	tokenID := uuid.New().String()
	refreshToken, err := jwt.GenerateRefreshToken(user.ID, tokenID, cfg.RefreshSecret, cfg.RefreshTokenDays)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.tokenRepo.Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refreshToken),
		ExpiresAt: jwt.GetExpiryTime(cfg.RefreshTokenDays),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.ToResponse(),
	}, nil
}

// provisionDirectoryUser creates the local record on first directory
// login and syncs name/groups on later ones
func (s *AuthService) provisionDirectoryUser(ctx context.Context, identity *DirectoryIdentity, cfg ADConfig) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, identity.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	groups, _ := json.Marshal(identity.Groups)
	now := time.Now().UTC()

	if user == nil {
		role := cfg.DefaultRole
		if role == "" {
			role = string(domain.RoleEmployee)
		}
		branch := cfg.DefaultBranch
		if branch == "" {
			branch = "Head Office"
		}
		user = &models.User{
			ID:           uuid.New().String(),
			Username:     identity.Username,
			PasswordHash: "",
			FullName:     identity.FullName,
			Role:         role,
			Branch:       branch,
			IsActive:     true,
			AuthMethod:   string(domain.AuthDirectory),
			ADGroups:     string(groups),
			LastADSyncAt: &now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to auto-create directory user: %w", err)
		}
		if _, err := s.auditService.Append(ctx, AuditEntry{
			EntityType: "user",
			EntityID:   user.ID,
			Action:     "ad_auto_create",
			After:      map[string]any{"username": user.Username},
			Actor:      actorFromUser(user),
		}); err != nil {
			log.Printf("⚠️ Failed to audit directory auto-create for %s: %v", user.Username, err)
		}
		return user, nil
	}

	user.FullName = identity.FullName
	user.ADGroups = string(groups)
	user.LastADSyncAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to sync directory user: %w", err)
	}
	return user, nil
}

func actorFromUser(u *models.User) domain.Actor {
	return domain.Actor{
		ID:       u.ID,
		Name:     u.FullName,
		Username: u.Username,
		Role:     domain.Role(u.Role),
		Branch:   u.Branch,
	}
}
