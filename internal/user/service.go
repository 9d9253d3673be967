package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GwennLsk/BackCantineAston/internal/auth"
	"github.com/GwennLsk/BackCantineAston/internal/logger"
	"github.com/GwennLsk/BackCantineAston/internal/metrics"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Notifier delivers account emails. Delivery failures never fail the
// operation that triggered them.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendAccountClosed(ctx context.Context, email, name string) error
	SendBalanceCredited(ctx context.Context, email, name string, amount, balance int64) error
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id string) (*User, error)
	AddOrder(ctx context.Context, id, orderKey string) (*User, error)
	Credit(ctx context.Context, id string, amount int64) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo      Repository
	notifier  Notifier
	jwtSecret string
}

func NewService(repo Repository, notifier Notifier, jwtSecret string) Service {
	return &service{
		repo:      repo,
		notifier:  notifier,
		jwtSecret: jwtSecret,
	}
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	email := normalizeEmail(req.Email)

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &User{
		ID:        primitive.NewObjectID(),
		Name:      strings.TrimSpace(req.Name),
		Firstname: strings.TrimSpace(req.Firstname),
		Email:     email,
		Password:  passwordHash,
		Admin:     req.Admin,
		OrderKeys: []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	metrics.RecordUserCreated()
	logger.Info("user created", "user_id", u.ID.Hex())
	s.notify("welcome", u, func() error {
		return s.notifier.SendWelcome(ctx, u.Email, u.Firstname)
	})

	return u, nil
}

func (s *service) List(ctx context.Context) ([]User, error) {
	return s.repo.FindAll(ctx)
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, oid)
}

func (s *service) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	var upd UserUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}
	if req.Firstname != nil {
		firstname := strings.TrimSpace(*req.Firstname)
		upd.Firstname = &firstname
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		upd.Email = &email
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		upd.Password = &hash
	}
	if req.OrderKeys != nil {
		keys, err := parseIDs(req.OrderKeys)
		if err != nil {
			return nil, err
		}
		upd.OrderKeys = keys
	}

	if upd.IsEmpty() {
		return s.repo.FindByID(ctx, oid)
	}

	if upd.Email != nil {
		current, err := s.repo.FindByEmail(ctx, *upd.Email)
		switch {
		case err == nil && current.ID != oid:
			return nil, ErrEmailExists
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return nil, err
		}
	}

	return s.repo.Update(ctx, oid, upd)
}

func (s *service) Delete(ctx context.Context, id string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Delete(ctx, oid)
	if err != nil {
		return nil, err
	}

	metrics.RecordUserDeleted()
	logger.Info("user deleted", "user_id", u.ID.Hex())
	s.notify("account_closed", u, func() error {
		return s.notifier.SendAccountClosed(ctx, u.Email, u.Firstname)
	})

	return u, nil
}

func (s *service) AddOrder(ctx context.Context, id, orderKey string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	key, err := ParseID(orderKey)
	if err != nil {
		return nil, err
	}
	return s.repo.AddOrderKey(ctx, oid, key)
}

func (s *service) Credit(ctx context.Context, id string, amount int64) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.AdjustSolde(ctx, oid, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			metrics.RecordSoldeAdjustment("rejected")
		}
		return nil, err
	}

	direction := "credit"
	if amount < 0 {
		direction = "debit"
	}
	metrics.RecordSoldeAdjustment(direction)

	if amount > 0 {
		s.notify("balance_credited", u, func() error {
			return s.notifier.SendBalanceCredited(ctx, u.Email, u.Firstname, amount, u.Solde)
		})
	}

	return u, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	u, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		metrics.RecordLogin("failed")
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		return nil, "", "", err
	}

	if !auth.CheckPassword(u.Password, req.Password) {
		metrics.RecordLogin("failed")
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		u.ID.Hex(),
		u.Email,
		auth.RoleFor(u.Admin),
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	metrics.RecordLogin("success")
	return u, accessToken, refreshToken, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *User, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	u, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			return "", nil, auth.ErrInvalidToken
		}
		return "", nil, err
	}

	// Role is re-read from the store so a revoked admin flag takes effect.
	newAccessToken, err := auth.GenerateAccessToken(u.ID.Hex(), u.Email, auth.RoleFor(u.Admin), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, u, nil
}

func (s *service) notify(kind string, u *User, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		logger.Warn("failed to queue notification",
			"kind", kind,
			"user_id", u.ID.Hex(),
			"error", err,
		)
	}
}
