package model

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes administrators from students.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// User is an account of either role.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	DateOfBirth  string    `json:"date_of_birth,omitempty"`
	Address      string    `json:"address,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for student self-registration.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	Phone       string `json:"phone" binding:"omitempty,max=20"`
	DateOfBirth string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address" binding:"omitempty,max=500"`
}

// LoginRequest is the payload for authentication of either role.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login or registration.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// StudentActivity aggregates the recorded submissions of one student.
type StudentActivity struct {
	Submissions      int
	LatestScore      int
	LatestTotalMarks int
	LatestPercentage float64
	LastSubmittedAt  time.Time
}

// StudentSummary is a student account with its submission activity.
type StudentSummary struct {
	User
	SubmissionCount  int        `json:"submission_count"`
	LatestScore      *int       `json:"latest_score"`
	LatestTotalMarks *int       `json:"latest_total_marks"`
	LatestPercentage *float64   `json:"latest_percentage"`
	LastSubmittedAt  *time.Time `json:"last_submitted_at"`
}
