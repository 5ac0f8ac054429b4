package rbac

import "testing"

func TestCanPreview(t *testing.T) {
	cases := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleEditor, true},
		{RoleUser, false},
		{Role(""), false},
		{Role("superuser"), false},
	}
	for _, tc := range cases {
		if got := CanPreview(tc.role); got != tc.want {
			t.Errorf("CanPreview(%q) = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestCan(t *testing.T) {
	if !Can(RoleAdmin, ActionAdmin) {
		t.Error("admin must be allowed admin actions")
	}
	if Can(RoleEditor, ActionAdmin) {
		t.Error("editor must not be allowed admin actions")
	}
	if !Can(RoleEditor, ActionPublish) {
		t.Error("editor must be allowed to publish")
	}
	if Can(RoleUser, ActionWrite) {
		t.Error("user must not be allowed to write")
	}
	if !Can(RoleUser, ActionRead) {
		t.Error("user must be allowed to read")
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("editor") != RoleEditor {
		t.Error("editor should normalize to itself")
	}
	if Normalize("") != RoleUser {
		t.Error("empty role should normalize to user")
	}
	if Normalize("owner") != RoleUser {
		t.Error("unknown role should normalize to user")
	}
}
