package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw    string
		want   Role
		wantOK bool
	}{
		{"student", RoleStudent, true},
		{"employer", RoleEmployer, true},
		{"recruiter", RoleEmployer, true},
		{"  Recruiter ", RoleEmployer, true},
		{"STUDENT", RoleStudent, true},
		{"admin", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeRole(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleStudent.Valid() || !RoleEmployer.Valid() {
		t.Fatal("student and employer must be valid roles")
	}
	if Role("recruiter").Valid() {
		t.Error("recruiter must never be a storable role")
	}
}

func TestPublicViewOmitsPassword(t *testing.T) {
	u := &User{
		ID:       "u1",
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "$2a$04$secret-hash",
		Role:     RoleStudent,
	}

	raw, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "password") || strings.Contains(string(raw), "secret-hash") {
		t.Errorf("public view leaked the password: %s", raw)
	}

	// The full record must not leak it either if it is ever serialised.
	raw, err = json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), "secret-hash") {
		t.Errorf("user JSON leaked the password: %s", raw)
	}
}
