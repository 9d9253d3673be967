package user

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidID = errors.New("invalid user id")

// User is a canteen account. Solde is the prepaid balance in cents.
type User struct {
	ID        primitive.ObjectID   `bson:"_id" json:"_id" swaggertype:"string" example:"5c52da3eb30043699194df38"`
	Name      string               `bson:"name" json:"name" example:"LINSKI"`
	Firstname string               `bson:"firstname" json:"firstname" example:"Gwenn"`
	Email     string               `bson:"email" json:"email" example:"gwenn.linski@gmail.com"`
	Password  string               `bson:"password" json:"-"`
	Admin     bool                 `bson:"admin" json:"admin"`
	OrderKeys []primitive.ObjectID `bson:"orderKeys" json:"orderKeys" swaggertype:"array,string"`
	Solde     int64                `bson:"solde" json:"solde"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// normalize guarantees orderKeys is serialized as a list.
func (u *User) normalize() {
	if u.OrderKeys == nil {
		u.OrderKeys = []primitive.ObjectID{}
	}
}

// UserUpdate lists the stored fields to change. Nil fields are left as they are.
type UserUpdate struct {
	Name      *string
	Firstname *string
	Email     *string
	Password  *string
	OrderKeys []primitive.ObjectID
}

func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Firstname == nil && u.Email == nil &&
		u.Password == nil && u.OrderKeys == nil
}

type CreateUserRequest struct {
	Name      string `json:"name" binding:"required,notblank,max=100" example:"AFFAME"`
	Firstname string `json:"firstname" binding:"required,notblank,max=100" example:"Jean-Michel"`
	Email     string `json:"email" binding:"required,email" example:"jm.affame@email.com"`
	Password  string `json:"password" binding:"required,min=6" example:"chihuahua"`
	// Admin is accepted from anyone, so the admin role gate on credit is
	// advisory until admin creation is restricted.
	Admin bool `json:"admin" example:"false"`
}

type UpdateUserRequest struct {
	Name      *string  `json:"name" binding:"omitempty,notblank,max=100"`
	Firstname *string  `json:"firstname" binding:"omitempty,notblank,max=100" example:"Agathe"`
	Email     *string  `json:"email" binding:"omitempty,email"`
	Password  *string  `json:"password" binding:"omitempty,min=6" example:"topsecret"`
	OrderKeys []string `json:"orderKeys" binding:"omitempty,dive,hexadecimal,len=24"`
}

type AddOrderRequest struct {
	OrderKey string `json:"orderKey" binding:"required,hexadecimal,len=24" example:"5c52da3eb30043699194df38"`
}

type CreditRequest struct {
	Amount int64 `json:"amount" binding:"required" example:"1500"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

type UserEnvelope struct {
	User *User `json:"user"`
}

type UsersEnvelope struct {
	Users []User `json:"users"`
}

// ParseID converts a 24 character hex string into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func IsValidID(id string) bool {
	_, err := ParseID(id)
	return err == nil
}

func parseIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
