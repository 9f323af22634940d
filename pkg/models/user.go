package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Mobile             string             `bson:"mobile" json:"mobile"`
	Password           string             `bson:"password" json:"-"`
	IsAdmin            bool               `bson:"is_admin" json:"is_admin"`
	LastLogin          time.Time          `bson:"last_login,omitempty" json:"last_login,omitempty"`
	RegistrationSource string             `bson:"registration_source" json:"registration_source"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
}
