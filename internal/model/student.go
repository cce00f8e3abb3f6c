package model

import "time"

// Language is the student's preferred exam language.
type Language string

const (
	LanguageRus Language = "rus"
	LanguageKaz Language = "kaz"
)

// Student is a registered olympiad participant.
type Student struct {
	ID           int       `json:"id"`
	IIN          string    `json:"iin"`
	FirstName    string    `json:"firstname"`
	LastName     string    `json:"lastname"`
	Email        string    `json:"email"`
	School       string    `json:"school"`
	Grade        int       `json:"grade"`
	Language     Language  `json:"language"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterStudentRequest is the payload for student self-registration.
type RegisterStudentRequest struct {
	IIN       string   `json:"iin" binding:"required,len=12,numeric"`
	FirstName string   `json:"firstname" binding:"required,min=2,max=100"`
	LastName  string   `json:"lastname" binding:"required,min=2,max=100"`
	Email     string   `json:"email" binding:"required,email"`
	School    string   `json:"school" binding:"required,min=2,max=255"`
	Grade     int      `json:"grade" binding:"required,min=1,max=12"`
	Language  Language `json:"language" binding:"required,oneof=rus kaz"`
	Password  string   `json:"password" binding:"required,min=6,max=128"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	IIN      string `json:"iin" binding:"required,len=12,numeric"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}
