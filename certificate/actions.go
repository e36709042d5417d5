package certificate

import (
	"fmt"
	"strings"

	"github.com/tenx/certdash/auth"
)

// Action is a row action offered to the user.
type Action string

const (
	ActionOptIn    Action = "OptIn"
	ActionOptOut   Action = "OptOut"
	ActionTransfer Action = "Transfer"
	ActionRevoke   Action = "Revoke"
)

// UpdatePath selects the update sub-operation: PUT /certificates/{path}/{id}.
type UpdatePath string

const (
	PathOptIn   UpdatePath = "optin"
	PathApprove UpdatePath = "optin/approve"
)

// Valid reports whether p is an update path the API serves.
func (p UpdatePath) Valid() bool {
	return p == PathOptIn || p == PathApprove
}

// Path is the update sub-operation an action is sent to. OptOut shares the
// opt-in endpoint and Revoke shares the approve endpoint; the server decides
// the resulting status.
func (a Action) Path() UpdatePath {
	switch a {
	case ActionOptIn, ActionOptOut:
		return PathOptIn
	case ActionTransfer, ActionRevoke:
		return PathApprove
	}
	return ""
}

// ParseAction matches s case-insensitively against the known actions.
func ParseAction(s string) (Action, error) {
	for _, a := range []Action{ActionOptIn, ActionOptOut, ActionTransfer, ActionRevoke} {
		if strings.EqualFold(string(a), s) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// AvailableActions returns the actions role may take on a certificate in
// status. The result is advisory; the server enforces authorization.
//
//	Status     Trainee  Issuer
//	NoRequest  OptIn    -
//	Pending    OptOut   Transfer, Revoke
//	Approved   OptOut   Transfer, Revoke
//	Denied     -        -
func AvailableActions(role auth.Role, status Status) []Action {
	switch role {
	case auth.RoleTrainee:
		switch status {
		case StatusNoRequest:
			return []Action{ActionOptIn}
		case StatusPending, StatusApproved:
			return []Action{ActionOptOut}
		}
	case auth.RoleIssuer:
		switch status {
		case StatusPending, StatusApproved:
			return []Action{ActionTransfer, ActionRevoke}
		}
	}
	return nil
}

// Allowed reports whether action is available to role for status.
func Allowed(role auth.Role, status Status, action Action) bool {
	for _, a := range AvailableActions(role, status) {
		if a == action {
			return true
		}
	}
	return false
}

// CanCreate reports whether role may issue new certificates.
func CanCreate(role auth.Role) bool {
	return role == auth.RoleIssuer
}
