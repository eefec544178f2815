package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capability values stored in User.Roles
const (
	RoleResident  = "resident"
	RoleCollector = "collector"
	RoleAdmin     = "admin"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID                primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username          string             `json:"username" bson:"username"`
	FullName          string             `json:"fullName" bson:"fullName"`
	Email             string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone             string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Password          string             `json:"-" bson:"password,omitempty"`
	Roles             []string           `json:"roles" bson:"roles"`
	LocationAddress   string             `json:"locationAddress,omitempty" bson:"locationAddress,omitempty"`
	LocationLat       *float64           `json:"locationLat,omitempty" bson:"locationLat,omitempty"`
	LocationLng       *float64           `json:"locationLng,omitempty" bson:"locationLng,omitempty"`
	TwoFactorEnabled  bool               `json:"twoFactorEnabled" bson:"twoFactorEnabled"`
	TwoFactorMethod   string             `json:"twoFactorMethod,omitempty" bson:"twoFactorMethod,omitempty"`
	TwoFactorCode     string             `json:"-" bson:"twoFactorCode,omitempty"`
	TwoFactorExpires  *time.Time         `json:"-" bson:"twoFactorExpires,omitempty"`
	TwoFactorLastSent *time.Time         `json:"-" bson:"twoFactorLastSent,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasRole reports whether the user carries the given capability
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasHomeLocation reports whether both home coordinates are set
func (u User) HasHomeLocation() bool {
	return u.LocationLat != nil && u.LocationLng != nil
}

// Summary returns the display fields of the user
func (u User) Summary() *UserSummary {
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
	}
}

// UserSummary is the resolved view of an identity embedded in other responses
type UserSummary struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	FullName string             `json:"fullName"`
	Email    string             `json:"email,omitempty"`
	Phone    string             `json:"phone,omitempty"`
}
