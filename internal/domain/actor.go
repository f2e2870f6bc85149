package domain

import "strconv"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAdmin      StaffRole = "admin"
	StaffRoleAttendant  StaffRole = "attendant"
	StaffRoleTechnician StaffRole = "technician"
)

// IsValid reports whether r is a known staff role.
func (r StaffRole) IsValid() bool {
	switch r {
	case StaffRoleAdmin, StaffRoleAttendant, StaffRoleTechnician:
		return true
	}
	return false
}

// ActorKind differentiates company, staff and scheduler callers.
type ActorKind string

const (
	ActorKindCompany ActorKind = "company"
	ActorKindStaff   ActorKind = "staff"
	ActorKindSystem  ActorKind = "system"
)

// Actor is the authenticated party performing an action. Build it with
// CompanyActor, StaffActor or SystemActor; the zero value is anonymous.
type Actor struct {
	Kind      ActorKind
	CompanyID int64
	UserID    int64
	Role      StaffRole
}

// CompanyActor returns an actor acting on behalf of a company.
func CompanyActor(companyID int64) Actor {
	return Actor{Kind: ActorKindCompany, CompanyID: companyID}
}

// StaffActor returns an actor for a staff member.
func StaffActor(userID int64, role StaffRole) Actor {
	return Actor{Kind: ActorKindStaff, UserID: userID, Role: role}
}

// SystemActor is used by the maintenance scheduler.
func SystemActor() Actor {
	return Actor{Kind: ActorKindSystem}
}

func (a Actor) IsCompany() bool { return a.Kind == ActorKindCompany && a.CompanyID > 0 }
func (a Actor) IsStaff() bool   { return a.Kind == ActorKindStaff && a.UserID > 0 && a.Role.IsValid() }
func (a Actor) IsAdmin() bool   { return a.IsStaff() && a.Role == StaffRoleAdmin }
func (a Actor) IsSystem() bool  { return a.Kind == ActorKindSystem }

// IsAuthenticated reports whether the actor is a company or staff member.
func (a Actor) IsAuthenticated() bool {
	return a.IsCompany() || a.IsStaff()
}

// StaffUserID returns the user id for staff actors and nil otherwise.
func (a Actor) StaffUserID() *int64 {
	if !a.IsStaff() {
		return nil
	}
	id := a.UserID
	return &id
}

// Recipient returns the notification recipient that represents this actor.
func (a Actor) Recipient() Recipient {
	switch {
	case a.IsCompany():
		return CompanyRecipient(a.CompanyID)
	case a.IsStaff():
		return UserRecipient(a.UserID)
	default:
		return Recipient{}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
