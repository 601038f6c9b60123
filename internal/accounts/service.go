package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/inkpath/backend/internal/apperrors"
	"github.com/inkpath/backend/internal/auth"
	"github.com/inkpath/backend/internal/identifier"
	"go.uber.org/zap"
)

const (
	opRegister      = "accounts.register"
	opAuthenticate  = "accounts.authenticate"
	opList          = "accounts.list"
	opGet           = "accounts.get"
	opResolve       = "accounts.resolve"
	opUpdateProfile = "accounts.update_profile"
	opPromoteAdmin  = "accounts.promote_admin"
)

const (
	messageDuplicate          = "Username or Email already exists"
	messageInvalidCredentials = "Invalid email or password"
	messageNotFound           = "User not found"
	messageUnresolved         = "Not authorised, user not found"
	messagePersistence        = "Failed to access accounts"
)

var (
	errMissingStore      = errors.New("accounts: store is required")
	errMissingIDProvider = errors.New("accounts: id provider is required")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Store      Store
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Service implements registration, authentication and profile management.
type Service struct {
	store      Store
	idProvider identifier.Provider
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		idProvider: cfg.IDProvider,
		validate:   newValidator(),
		logger:     logger,
	}, nil
}

// Registration carries the fields accepted by Register.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Register validates the registration, enforces case-insensitive uniqueness and stores the
// account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, registration Registration) (Account, error) {
	input := registrationInput{
		Username: strings.TrimSpace(registration.Username),
		Email:    NormalizeEmail(registration.Email),
		Password: registration.Password,
	}
	if err := s.validate.Struct(input); err != nil {
		return Account{}, apperrors.New(apperrors.KindValidation, validationMessage(err))
	}

	_, err := s.store.FindByUsernameOrEmail(ctx, input.Username, input.Email)
	switch {
	case err == nil:
		s.logger.Info("registration rejected for duplicate identity",
			zap.String("username", input.Username), zap.String("email", input.Email))
		return Account{}, apperrors.New(apperrors.KindConflict, messageDuplicate)
	case !errors.Is(err, ErrNotFound):
		s.logError(opRegister, "lookup_failed", err)
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		s.logError(opRegister, "hash_failed", err)
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, "Failed to secure password", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}

	account := Account{
		ID:               id,
		Username:         input.Username,
		UsernameKey:      UsernameKey(input.Username),
		Email:            input.Email,
		PasswordHash:     hash,
		ProfileImage:     DefaultProfileImage,
		Bio:              DefaultBio,
		Stories:          []string{},
		FavouriteStories: []string{},
	}
	if err := s.store.Create(ctx, &account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Account{}, apperrors.New(apperrors.KindConflict, messageDuplicate)
		}
		s.logError(opRegister, "create_failed", err, zap.String("username", input.Username))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.String("username", account.Username))
	return account.Sanitized(), nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords produce the same
// error.
func (s *Service) Authenticate(ctx context.Context, email string, password string) (Account, error) {
	input := credentialsInput{Email: NormalizeEmail(email), Password: password}
	if err := s.validate.Struct(input); err != nil {
		return Account{}, apperrors.New(apperrors.KindValidation, validationMessage(err))
	}

	account, err := s.store.FindByEmail(ctx, input.Email)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("login failed", zap.String("reason", "unknown_email"))
		return Account{}, apperrors.New(apperrors.KindInvalidCredentials, messageInvalidCredentials)
	}
	if err != nil {
		s.logError(opAuthenticate, "lookup_failed", err)
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	if !auth.ComparePassword(account.PasswordHash, input.Password) {
		s.logger.Info("login failed", zap.String("reason", "password_mismatch"), zap.String("account_id", account.ID))
		return Account{}, apperrors.New(apperrors.KindInvalidCredentials, messageInvalidCredentials)
	}
	return account.Sanitized(), nil
}

// List returns every account without credentials.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	sanitized := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		sanitized = append(sanitized, account.Sanitized())
	}
	return sanitized, nil
}

// Get returns one account without credentials.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	account, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Account{}, apperrors.New(apperrors.KindNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("account_id", id))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	return account.Sanitized(), nil
}

// Resolve looks up the account behind a verified token. A missing account is reported as
// AccountNotFound rather than NotFound.
func (s *Service) Resolve(ctx context.Context, id string) (Account, error) {
	account, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Account{}, apperrors.New(apperrors.KindAccountNotFound, messageUnresolved)
	}
	if err != nil {
		s.logError(opResolve, "query_failed", err, zap.String("account_id", id))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	return account.Sanitized(), nil
}

// UpdateProfile merges the profile image and bio into the account.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Account, error) {
	if err := s.validate.Struct(profileInput{ProfileImage: update.ProfileImage, Bio: update.Bio}); err != nil {
		return Account{}, apperrors.New(apperrors.KindValidation, validationMessage(err))
	}
	account, err := s.store.UpdateProfile(ctx, id, update)
	if errors.Is(err, ErrNotFound) {
		return Account{}, apperrors.New(apperrors.KindNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(opUpdateProfile, "update_failed", err, zap.String("account_id", id))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	return account.Sanitized(), nil
}

// PromoteAdmin sets the elevated privilege flag. It is reachable only from the operator
// command line.
func (s *Service) PromoteAdmin(ctx context.Context, username string, admin bool) (Account, error) {
	account, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return Account{}, apperrors.New(apperrors.KindNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(opPromoteAdmin, "lookup_failed", err, zap.String("username", username))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	updated, err := s.store.SetAdmin(ctx, account.ID, admin)
	if errors.Is(err, ErrNotFound) {
		return Account{}, apperrors.New(apperrors.KindNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(opPromoteAdmin, "update_failed", err, zap.String("account_id", account.ID))
		return Account{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	s.logger.Info("account admin flag changed", zap.String("account_id", updated.ID), zap.Bool("admin", admin))
	return updated.Sanitized(), nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("accounts service error", attrs...)
}
