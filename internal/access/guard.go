// Package access decides whether a session may use an operation and, if not,
// which login surface the caller should be sent to.
package access

import (
	"github.com/epitome/examportal/internal/session"
)

type Role int

const (
	RoleAdmin Role = iota
	RoleCandidate
	RoleAuthenticated
)

const (
	AdminLoginPath     = "/admin_login"
	CandidateLoginPath = "/user_login"
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleCandidate:
		return "candidate"
	case RoleAuthenticated:
		return "any-authenticated"
	default:
		return "unknown"
	}
}

type Decision struct {
	Allowed  bool
	Redirect string
}

// Authorize depends only on the session's user type.
func Authorize(s *session.Session, required Role) Decision {
	var userType session.UserType
	if s != nil {
		userType = s.UserType
	}

	switch required {
	case RoleAdmin:
		if userType == session.UserTypeAdmin {
			return Decision{Allowed: true}
		}
		return Decision{Redirect: AdminLoginPath}
	case RoleCandidate:
		if userType == session.UserTypeCandidate {
			return Decision{Allowed: true}
		}
		return Decision{Redirect: CandidateLoginPath}
	case RoleAuthenticated:
		if userType == session.UserTypeAdmin || userType == session.UserTypeCandidate {
			return Decision{Allowed: true}
		}
		return Decision{Redirect: CandidateLoginPath}
	default:
		return Decision{Redirect: CandidateLoginPath}
	}
}
