package domain

import "time"

type Customer struct {
	ID               string
	IdentificationNo string
	Name             string
	Email            string
	PasswordHash     []byte
	Status           string
	CreatedAt        time.Time
}
