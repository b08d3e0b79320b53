package slug

import "testing"

func TestMake(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Coach", "coach"},
		{"spaces become hyphens", "Team Captain", "team-captain"},
		{"multiple spaces collapse", "Bus   Driver", "bus-driver"},
		{"already slugged", "coaches-only", "coaches-only"},
		{"underscores", "road_crew", "road-crew"},
		{"punctuation dropped", "V.I.P. Guests!", "vip-guests"},
		{"leading and trailing space", "  Staff  ", "staff"},
		{"trailing separator trimmed", "Staff -", "staff"},
		{"unicode letters kept", "Équipe Média", "équipe-média"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Make(tc.in); got != tc.want {
				t.Errorf("Make(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMakeDeterministic(t *testing.T) {
	// Roster sync depends on the same input always producing the same slug.
	for i := 0; i < 3; i++ {
		if got := Make("Equipment Manager"); got != "equipment-manager" {
			t.Fatalf("Make not deterministic: got %q", got)
		}
	}
}
