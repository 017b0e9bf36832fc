package domain

import (
	"fmt"
	"sort"

	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

// Capability names. The table below is the single source of truth for which
// roles hold them; call sites reference these constants so typos surface as
// compile errors rather than silent denies.
const (
	CapDispatchAmbulances = "dispatch-ambulances"
	CapTrackAmbulances    = "track-ambulances"
	CapViewDispatchBoard  = "view-dispatch-board"
	CapManageReferrals    = "manage-referrals"
	CapViewReferral       = "view-referral"
	CapViewPatientRecord  = "view-patient-record"
	CapUpdateOwnProfile   = "update-own-profile"
	CapChangeUserRole     = "change-user-role"
	CapExportData         = "export-data"
	CapDeleteRecords      = "delete-records"
	CapBroadcastEmergency = "broadcast-emergency"
	CapManageBeds         = "manage-beds"
	CapManageEquipment    = "manage-equipment"
	CapSendChatMessage    = "send-chat-message"
	CapInitiateCall       = "initiate-call"
)

type roleSet map[dir.Role]struct{}

func newRoleSet(roles ...dir.Role) roleSet {
	s := make(roleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s roleSet) has(r dir.Role) bool {
	_, ok := s[r]
	return ok
}

// Rule resolves one capability: membership in Roles grants it outright;
// membership in OwnerRoles grants it only when the checked resource is owned
// by the acting actor. Sensitive capabilities have their denials audited.
type Rule struct {
	Roles      roleSet
	OwnerRoles roleSet
	Sensitive  bool
}

var (
	admins    = []dir.Role{dir.RoleSuperAdmin, dir.RoleFacilityAdmin}
	clinical  = []dir.Role{dir.RoleDoctor, dir.RoleNurse}
	dispatch  = []dir.Role{dir.RoleDispatcher}
	fieldCrew = []dir.Role{dir.RoleDriver, dir.RoleParamedic}
	allStaff  = dir.StaffRoles
	everyone  = dir.AllRoles
)

func join(groups ...[]dir.Role) []dir.Role {
	var out []dir.Role
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// table is fixed configuration data: built once, immutable thereafter.
var table = map[string]Rule{
	CapDispatchAmbulances: {Roles: newRoleSet(join(admins, dispatch)...)},
	CapTrackAmbulances:    {Roles: newRoleSet(join(admins, dispatch, fieldCrew)...)},
	CapViewDispatchBoard:  {Roles: newRoleSet(join(admins, dispatch, clinical)...)},
	CapManageReferrals:    {Roles: newRoleSet(join(admins, clinical)...)},
	CapViewReferral:       {Roles: newRoleSet(join(admins, clinical, dispatch)...)},

	// Patients may read their own record; clinical and admin roles bypass
	// the ownership requirement.
	CapViewPatientRecord: {
		Roles:      newRoleSet(join(admins, clinical)...),
		OwnerRoles: newRoleSet(dir.RolePatient),
	},
	CapUpdateOwnProfile: {OwnerRoles: newRoleSet(everyone...)},

	CapChangeUserRole: {Roles: newRoleSet(admins...), Sensitive: true},
	CapExportData:     {Roles: newRoleSet(admins...), Sensitive: true},
	CapDeleteRecords:  {Roles: newRoleSet(dir.RoleSuperAdmin), Sensitive: true},

	CapBroadcastEmergency: {Roles: newRoleSet(join(admins, dispatch)...)},
	CapManageBeds:         {Roles: newRoleSet(join(admins, []dir.Role{dir.RoleNurse})...)},
	CapManageEquipment:    {Roles: newRoleSet(join(admins, []dir.Role{dir.RoleNurse})...)},

	CapSendChatMessage: {Roles: newRoleSet(allStaff...)},
	CapInitiateCall:    {Roles: newRoleSet(allStaff...)},
}

// Lookup returns the rule for a capability name.
func Lookup(name string) (Rule, bool) {
	r, ok := table[name]
	return r, ok
}

// Capabilities returns every table key in sorted order.
func Capabilities() []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSensitive reports whether denials of this capability must be audited.
func IsSensitive(name string) bool {
	r, ok := table[name]
	return ok && r.Sensitive
}

// Evaluate is the pure capability resolver. It reads only its input and the
// static table; repeated calls with identical input return identical output.
func Evaluate(in Input) (Decision, error) {
	// Hard-coded override: a super-admin can never authorize a role change
	// on their own account. Checked before the table so no table edit can
	// reopen the hole.
	if in.Capability == CapChangeUserRole &&
		in.Role == dir.RoleSuperAdmin &&
		in.Resource != nil && in.Resource.OwnerActorID == in.ActorID {
		return Decision{Allowed: false, Reason: ReasonSelfDemotion}, nil
	}

	rule, ok := table[in.Capability]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownCapability, in.Capability)
	}

	if rule.Roles.has(in.Role) {
		return Decision{Allowed: true, Reason: ReasonGranted}, nil
	}
	if rule.OwnerRoles.has(in.Role) && in.Resource != nil && in.Resource.OwnerActorID == in.ActorID {
		return Decision{Allowed: true, Reason: ReasonGrantedOwner}, nil
	}
	return Decision{Allowed: false, Reason: ReasonDenied}, nil
}
