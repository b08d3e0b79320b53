// capability.go defines the fixed admin capability names and their mapping to
// admin_grants columns. Keeping the set enumerated (instead of an open-ended
// string map) means an unknown capability is a compile- or validation-time
// error, never a silent false.
package authz

// Capability is one of the three admin capability names
type Capability string

const (
	// CapabilityManageRoles allows creating/deleting roles and assigning
	// them to members.
	CapabilityManageRoles Capability = "manage_roles"

	// CapabilityManageChannels allows creating channels and editing the
	// role-to-channel grant map.
	CapabilityManageChannels Capability = "manage_channels"

	// CapabilityDesignateAdmins allows granting admin capabilities to other
	// members.
	CapabilityDesignateAdmins Capability = "designate_admins"
)

// AllCapabilities returns every valid capability
func AllCapabilities() []Capability {
	return []Capability{CapabilityManageRoles, CapabilityManageChannels, CapabilityDesignateAdmins}
}

// IsValid reports whether the capability is one of the fixed set
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityManageRoles, CapabilityManageChannels, CapabilityDesignateAdmins:
		return true
	}
	return false
}

// column returns the admin_grants column backing the capability. Only valid
// capabilities reach this; the engine validates first.
func (c Capability) column() string {
	return string(c)
}
