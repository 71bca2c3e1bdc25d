// Package domain contains core domain types for the Miktsoan application.
package domain

import (
	"time"
)

// Role identifies what kind of account a profile belongs to.
type Role string

const (
	RoleUser         Role = "user"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Valid reports whether the role is one of the known account kinds.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleProfessional, RoleAdmin:
		return true
	}
	return false
}

// Language is a UI language preference.
type Language string

const (
	LangEnglish Language = "en"
	LangHebrew  Language = "he"
	LangArabic  Language = "ar"

	// DefaultLanguage is used when no preference has been stored yet.
	DefaultLanguage = LangHebrew
)

// Direction is the text direction implied by a language.
type Direction string

const (
	DirLTR Direction = "ltr"
	DirRTL Direction = "rtl"
)

// Direction returns the text direction for the language. Hebrew and Arabic
// render right-to-left; everything else defaults to left-to-right.
func (l Language) Direction() Direction {
	if l == LangEnglish {
		return DirLTR
	}
	return DirRTL
}

// GeoLocation is a point with a human-readable address.
type GeoLocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// UserProfile is the authenticated identity and its preferences. The phone
// number is the unique external identity key.
type UserProfile struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone"`
	Avatar    string       `json:"avatar,omitempty"`
	Role      Role         `json:"role"`
	Language  Language     `json:"language"`
	Location  *GeoLocation `json:"location,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// RequestStatus tracks the lifecycle of a service request document.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestQuoted     RequestStatus = "quoted"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

// ServiceRequest is a user's job posting, stored in the document store.
// Matching, quoting and contract signing around it are outside this core.
type ServiceRequest struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Images      []string      `json:"images,omitempty"`
	Status      RequestStatus `json:"status"`
	Location    *GeoLocation  `json:"location,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
