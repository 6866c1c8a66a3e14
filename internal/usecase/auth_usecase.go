package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/config"
	"shopcore/internal/domain/ledger"
	"shopcore/internal/domain/model"
	"shopcore/internal/repository"
	"shopcore/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ログアウト済みjtiの保存先（Redis）
type RevokedTokens interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type UserDTO struct {
	ID            int64           `json:"id"`
	Email         string          `json:"email"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Role          string          `json:"role"`
	IsActive      bool            `json:"is_active"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

type JwtAccessTokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthRegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type AuthUsecase struct {
	cfg       config.Config
	tx        repository.TransactionManager
	users     repository.UserRepository
	validator *validator.AuthValidator
	revoked   RevokedTokens
	clock     Clock
	logger    *zap.Logger
}

func NewAuthUsecase(
	cfg config.Config,
	tx repository.TransactionManager,
	users repository.UserRepository,
	validator *validator.AuthValidator,
	revoked RevokedTokens,
	clock Clock,
	logger *zap.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		tx:        tx,
		users:     users,
		validator: validator,
		revoked:   revoked,
		clock:     clock,
		logger:    logger,
	}
}

// Register はユーザー作成と初期残高の入金を1トランザクションでやる
func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, email, req.Password); err != nil {
		return UserDTO{}, authValidationError(err)
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserDTO{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error")
	}

	now := u.clock.Now()
	opening := u.cfg.InitialWalletBalance

	user := &model.User{
		Email:         email,
		PasswordHash:  string(pwHash),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Role:          model.RoleUser,
		IsActive:      true,
		WalletBalance: opening,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		//email重複はDBの一意制約で最終的に弾く
		if err := r.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return NewHTTPError(http.StatusConflict, CodeConflict, "email already used")
			}
			return err
		}

		//台帳を0から再生できるように初期残高も1行残す
		if opening.IsPositive() {
			if _, err := r.Ledger().Create(ctx, ledger.NewEntry(ledger.EntryInput{
				UserID:        user.ID,
				Type:          model.TransactionTypeWalletCredit,
				Amount:        opening,
				BalanceBefore: decimal.Zero,
				BalanceAfter:  opening,
				Description:   "Opening wallet balance",
			}, now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return UserDTO{}, storeError(err)
	}

	u.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return toUserDTO(user), nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (AuthLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := u.validator.ValidateLogin(ctx, email, req.Password); err != nil {
		return AuthLoginResponse{}, authValidationError(err)
	}

	//存在しない・パスワード違いは同じ401
	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "invalid email or password")
	}
	if err != nil {
		return AuthLoginResponse{}, storeError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "invalid email or password")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, CodeForbidden, "account is disabled")
	}

	//last_login更新（失敗してもログインは通す）
	if err := u.users.UpdateLastLogin(ctx, user.ID); err != nil {
		u.logger.Warn("failed to update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, err := u.issueAccessToken(user)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error")
	}

	return AuthLoginResponse{User: toUserDTO(user), Token: token}, nil
}

// Logout はこのトークン（jti）だけを期限まで無効にする
func (u *AuthUsecase) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return unauthorized()
	}
	ttl := expiresAt.Sub(u.clock.Now())
	if err := u.revoked.Revoke(ctx, jti, ttl); err != nil {
		u.logger.Error("failed to revoke token", zap.Error(err))
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error")
	}
	return nil
}

// LogoutAll はtoken_versionを上げて発行済みトークンを全部無効にする
func (u *AuthUsecase) LogoutAll(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return unauthorized()
	}
	if err := u.users.IncrementTokenVersion(ctx, userID); err != nil {
		return storeError(userLookupError(err))
	}
	return nil
}

// ForceLogout は管理者が対象ユーザーの全セッションを切る
func (u *AuthUsecase) ForceLogout(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return badRequest(CodeValidation, "invalid user_id")
	}
	err := u.users.IncrementTokenVersion(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound("user not found")
	}
	if err != nil {
		return storeError(err)
	}
	u.logger.Info("sessions revoked by admin", zap.Int64("user_id", userID))
	return nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserDTO, error) {
	if userID <= 0 {
		return UserDTO{}, unauthorized()
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return UserDTO{}, storeError(userLookupError(err))
	}
	if !user.IsActive {
		return UserDTO{}, NewHTTPError(http.StatusForbidden, CodeForbidden, "account is disabled")
	}
	return toUserDTO(user), nil
}

// ValidateSession はミドルウェアから呼ばれる。
// tvがDBと違う・jtiがログアウト済み・停止ユーザーなら401。
func (u *AuthUsecase) ValidateSession(ctx context.Context, userID int64, tokenVersion int, jti string) error {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized()
		}
		return storeError(err)
	}
	if !user.IsActive || user.TokenVersion != tokenVersion {
		return unauthorized()
	}

	revoked, err := u.revoked.IsRevoked(ctx, jti)
	if err != nil {
		u.logger.Error("failed to check revoked token", zap.Error(err))
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error")
	}
	if revoked {
		return unauthorized()
	}
	return nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User) (JwtAccessTokenDTO, error) {
	now := u.clock.Now()
	exp := now.Add(u.cfg.AccessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return JwtAccessTokenDTO{}, err
	}

	return JwtAccessTokenDTO{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(u.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func authValidationError(err error) error {
	switch {
	case errors.Is(err, validator.ErrEmailAlreadyUsed):
		return NewHTTPError(http.StatusConflict, CodeConflict, "email already used")
	case errors.Is(err, validator.ErrInvalidInput):
		return badRequest(CodeValidation, "invalid email or password format")
	}
	return storeError(err)
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		WalletBalance: u.WalletBalance,
		CreatedAt:     u.CreatedAt,
	}
}
