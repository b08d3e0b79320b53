package authz

import "testing"

func TestCapability_IsValid(t *testing.T) {
	for _, c := range AllCapabilities() {
		if !c.IsValid() {
			t.Errorf("capability %q should be valid", c)
		}
	}
	for _, c := range []Capability{"", "manage_trips", "MANAGE_ROLES", "admin"} {
		if c.IsValid() {
			t.Errorf("capability %q should not be valid", c)
		}
	}
}

func TestAllCapabilities_IsTheFixedSet(t *testing.T) {
	got := AllCapabilities()
	want := []Capability{CapabilityManageRoles, CapabilityManageChannels, CapabilityDesignateAdmins}
	if len(got) != len(want) {
		t.Fatalf("AllCapabilities() returned %d capabilities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllCapabilities()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
