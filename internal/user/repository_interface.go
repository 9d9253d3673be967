package user

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailExists         = errors.New("email already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Repository is the user store. Implementations return ErrUserNotFound for
// unknown ids and ErrEmailExists when the unique email constraint is hit.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindAll(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*User, error)
	AddOrderKey(ctx context.Context, id, orderKey primitive.ObjectID) (*User, error)
	// AdjustSolde adds delta to the balance unless the result would be negative.
	AdjustSolde(ctx context.Context, id primitive.ObjectID, delta int64) (*User, error)
	Ping(ctx context.Context) error
}
