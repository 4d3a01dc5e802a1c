package model

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"empty listing", 0, 0},
		{"negative count from a broken backend", -1, 0},
		{"less than one page", 5, 1},
		{"exactly one page", 6, 1},
		{"thirteen events need three pages", 13, 3},
		{"exact multiple", 12, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := EventPage{TotalCount: tt.count}
			if got := p.TotalPages(); got != tt.want {
				t.Errorf("TotalPages() with count=%d = %d, want %d", tt.count, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"going", "maybe", "not_going"} {
		st, err := ParseStatus(valid)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned error: %v", valid, err)
		}
		if string(st) != valid {
			t.Errorf("ParseStatus(%q) = %q", valid, st)
		}
	}

	for _, invalid := range []string{"", "GOING", "yes", "not going"} {
		if _, err := ParseStatus(invalid); err == nil {
			t.Errorf("ParseStatus(%q) should have failed", invalid)
		}
	}
}

func TestRoleKnown(t *testing.T) {
	for _, known := range []Role{RoleAdmin, RolePremium, RoleGuest} {
		if !known.Known() {
			t.Errorf("Role %q should be known", known)
		}
	}
	for _, unknown := range []Role{"", "superuser", "Admin"} {
		if unknown.Known() {
			t.Errorf("Role %q should not be known", unknown)
		}
	}
}
