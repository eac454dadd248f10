package role

// Capabilities is the set of attendance actions a role may perform.
type Capabilities struct {
	View           bool `json:"can_view"`
	Adjust         bool `json:"can_adjust"`
	Delete         bool `json:"can_delete"`
	Export         bool `json:"can_export"`
	ViewAuditTrail bool `json:"can_view_audit_trail"`
}

// staff roles may view & adjust attendance
func isStaff(r Role) bool {
	switch r {
	case PlatformOwner, OrgSuperAdmin, OrgAdmin, Manager:
		return true
	default:
		return false
	}
}

// admin roles additionally may delete, export & read the audit trail
func isAdmin(r Role) bool {
	switch r {
	case PlatformOwner, OrgSuperAdmin, OrgAdmin:
		return true
	default:
		return false
	}
}

func CanView(r Role) bool           { return isStaff(r) }
func CanAdjust(r Role) bool         { return isStaff(r) }
func CanDelete(r Role) bool         { return isAdmin(r) }
func CanExport(r Role) bool         { return isAdmin(r) }
func CanViewAuditTrail(r Role) bool { return isAdmin(r) }

// CanManageMembers reports whether r may create members and set policies in its organization.
func CanManageMembers(r Role) bool { return isAdmin(r) }

// Outranks reports whether r is strictly higher than other.
func (r Role) Outranks(other Role) bool {
	return r.IsKnown() && (!other.IsKnown() || r < other)
}

// Of returns every capability of r.
func Of(r Role) Capabilities {
	return Capabilities{
		View:           CanView(r),
		Adjust:         CanAdjust(r),
		Delete:         CanDelete(r),
		Export:         CanExport(r),
		ViewAuditTrail: CanViewAuditTrail(r),
	}
}
