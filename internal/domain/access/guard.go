// Package access decides whether an actor may perform a loan action. It has
// no side effects and never caches roles.
package access

import (
	"peerlend/internal/domain/loan"
	"peerlend/internal/domain/membership"
)

// Additional actions that only exist at the authorization layer.
const (
	ActionView          loan.Action = "view"
	ActionListCommunity loan.Action = "list_community"
)

// Denial reason codes.
const (
	ReasonNotMember      = "not_community_member"
	ReasonNotModerator   = "not_community_moderator"
	ReasonOwnLoan        = "own_loan"
	ReasonNotBorrower    = "not_borrower"
	ReasonNotAdmin       = "not_admin"
	ReasonNotParticipant = "not_participant"
	ReasonUnknownAction  = "unknown_action"
)

// Request is everything the guard needs. BorrowerID and LenderID are empty for create.
type Request struct {
	Action        loan.Action
	Actor         membership.Actor
	CommunityRole membership.Role
	BorrowerID    string
	LenderID      string
}

type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason, msg string) Decision { return Decision{Reason: reason, Message: msg} }

// Err converts a denial into an authorization error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return loan.NewAuthorization(d.Reason, d.Message)
}

// Check evaluates the rule for r.Action.
func Check(r Request) Decision {
	actor := r.Actor
	isBorrower := actor.ID != "" && actor.ID == r.BorrowerID

	switch r.Action {
	case loan.ActionCreate:
		if !r.CommunityRole.IsMember() {
			return deny(ReasonNotMember, "user must be a member of the community to request a loan")
		}
	case loan.ActionApprove, loan.ActionReject:
		if !r.CommunityRole.CanModerate() && !actor.IsAdmin() {
			return deny(ReasonNotModerator, "user not authorized to "+string(r.Action)+" loans")
		}
	case loan.ActionFund:
		if !r.CommunityRole.IsMember() {
			return deny(ReasonNotMember, "user must be a member of the community to fund a loan")
		}
		if isBorrower {
			return deny(ReasonOwnLoan, "cannot fund your own loan")
		}
	case loan.ActionCancel:
		if !isBorrower && !actor.IsAdmin() {
			return deny(ReasonNotBorrower, "user not authorized to cancel this loan")
		}
	case loan.ActionUpdate:
		if !isBorrower && !actor.IsAdmin() {
			return deny(ReasonNotBorrower, "user not authorized to update this loan")
		}
	case loan.ActionRecordPayment:
		if !isBorrower && !actor.IsAdmin() {
			return deny(ReasonNotBorrower, "user not authorized to record payments for this loan")
		}
	case loan.ActionComplete:
		if !actor.IsAdmin() {
			return deny(ReasonNotAdmin, "only admin can manually complete a loan")
		}
	case loan.ActionMarkDefault:
		if !actor.IsAdmin() {
			return deny(ReasonNotAdmin, "only admin can mark a loan as defaulted")
		}
	case ActionView:
		isLender := actor.ID != "" && actor.ID == r.LenderID
		if !isBorrower && !isLender && !actor.IsAdmin() && !r.CommunityRole.CanModerate() {
			return deny(ReasonNotParticipant, "user not authorized to view this loan")
		}
	case ActionListCommunity:
		if !r.CommunityRole.IsMember() && !actor.IsAdmin() {
			return deny(ReasonNotMember, "user not authorized to view loans in this community")
		}
	default:
		return deny(ReasonUnknownAction, "unknown action "+string(r.Action))
	}
	return allow()
}

// NeedsCommunityRole reports whether Check reads CommunityRole for action a, so
// callers can skip the membership lookup otherwise.
func NeedsCommunityRole(a loan.Action) bool {
	switch a {
	case loan.ActionCreate, loan.ActionApprove, loan.ActionReject, loan.ActionFund, ActionView, ActionListCommunity:
		return true
	}
	return false
}
