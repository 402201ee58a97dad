package models

import (
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("email_list", func(fl validator.FieldLevel) bool {
		for _, addr := range SplitEmails(fl.Field().String()) {
			if _, err := mail.ParseAddress(addr); err != nil {
				return false
			}
		}
		return true
	})
	return v
}

// Validator returns the shared validator with the portal's custom tags registered.
func Validator() *validator.Validate {
	return validate
}

// Candidate is a row of the candidates table. PasswordHash is what logins
// are checked against; Password is kept for the admin listing.
type Candidate struct {
	ID           int64  `db:"id" json:"-"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	Password     string `db:"password" json:"password"`
	Issued       bool   `db:"issued" json:"issued"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile is what a candidate types on the login form.
type Profile struct {
	FullName string `json:"full_name" validate:"required,max=128"`
	Email    string `json:"email" validate:"omitempty,max=256,email_list"`
	Gender   string `json:"gender" validate:"omitempty,max=16"`
	Subject  string `json:"subject" validate:"required,max=64"`
}

func (p *Profile) Validate() error {
	return validate.Struct(p)
}

// SplitEmails splits a comma separated address list, dropping blanks.
func SplitEmails(list string) []string {
	var out []string
	for _, addr := range strings.Split(list, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
