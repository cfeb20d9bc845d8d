package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"filestore/internal/filestore"
	"filestore/internal/model"
)

// Service registers and authenticates users.
type Service struct {
	db     filestore.Database
	params Argon2Params
	tokens *TokenIssuer
	clock  filestore.Clock
	idgen  filestore.IDGenerator
	logger filestore.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an auth service.
func NewService(db filestore.Database, params Argon2Params, tokens *TokenIssuer, clock filestore.Clock, idgen filestore.IDGenerator, logger filestore.Logger) *Service {
	if logger == nil {
		logger = filestore.NewNopLogger()
	}
	return &Service{db: db, params: params, tokens: tokens, clock: clock, idgen: idgen, logger: logger}
}

// Register creates a user. A taken username fails with ErrConflict.
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", filestore.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", filestore.ErrInvalidInput)
	}

	existing, err := s.db.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: User with this username exists.", filestore.ErrConflict)
	}

	hash, err := HashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		ID:           s.idgen.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "username", user.Username, "id", user.ID)
	return user, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both fail with ErrUnauthorized and take similar time.
func (s *Service) Authenticate(ctx context.Context, username, password string) (filestore.Principal, error) {
	user, err := s.db.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return filestore.Principal{}, fmt.Errorf("looking up user: %w", err)
	}

	encoded := s.dummy()
	if user != nil {
		encoded = user.PasswordHash
	}
	ok, err := VerifyPassword(password, encoded)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "username", username, "error", err)
	}
	if user == nil || !ok || err != nil {
		return filestore.Principal{}, fmt.Errorf("%w: incorrect username or password", filestore.ErrUnauthorized)
	}
	return filestore.Principal{UserID: user.ID, Username: user.Username}, nil
}

// Login authenticates and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	p, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(p)
}

// CurrentPrincipal verifies token and confirms its user still exists.
func (s *Service) CurrentPrincipal(ctx context.Context, token string) (filestore.Principal, error) {
	p, err := s.tokens.Verify(token)
	if err != nil {
		return filestore.Principal{}, err
	}
	user, err := s.db.FindUserByID(ctx, p.UserID)
	if err != nil {
		return filestore.Principal{}, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || user.Username != p.Username {
		return filestore.Principal{}, fmt.Errorf("%w: user no longer exists", filestore.ErrUnauthorized)
	}
	return p, nil
}

// dummy returns a hash to verify against when the user is unknown.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := HashPassword("unused-password", s.params)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
