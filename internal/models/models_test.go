package models

import (
	"testing"
	"time"
)

func TestRoleAssignmentWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := RoleAssignment{StartDate: start, Active: true}
	if err := a.ValidateWindow(); err != nil {
		t.Fatalf("open window should be valid: %v", err)
	}
	same := start
	a.EndDate = &same
	if err := a.ValidateWindow(); err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow for equal dates, got %v", err)
	}
}

func TestRoleAssignmentDeactivate(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := RoleAssignment{StartDate: start, Active: true}
	if err := a.Deactivate(start.Add(-time.Hour), "x"); err == nil {
		t.Fatalf("expected deactivation before start to fail")
	}
	if !a.Active || a.EndDate != nil {
		t.Fatalf("failed deactivation must leave the assignment untouched")
	}
	end := start.AddDate(0, 6, 0)
	if err := a.Deactivate(end, "fin de año"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if a.Active || a.Notes == nil || *a.Notes != "fin de año" {
		t.Fatalf("unexpected assignment after deactivation: %+v", a)
	}
	if a.InForce(start.AddDate(0, 1, 0)) {
		t.Fatalf("inactive assignment should not be in force")
	}
}

func TestRoleIsAdult(t *testing.T) {
	cases := map[string]struct {
		role Role
		want bool
	}{
		"student":           {Role{IsStudent: true, Category: CategoryStudent}, false},
		"student treasurer": {Role{Category: CategoryStudent}, false},
		"profesor":          {Role{Category: "DOCENTE"}, true},
	}
	for name, tc := range cases {
		if got := tc.role.IsAdult(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestPersonFullNameAndAudit(t *testing.T) {
	materno := "González"
	p := Person{GivenNames: "Juan  Carlos", PaternalSurname: "Pérez", MaternalSurname: &materno}
	if got := p.FullName(); got != "Juan Carlos Pérez González" {
		t.Fatalf("unexpected full name %q", got)
	}
	now := time.Now().UTC()
	p.StampCreate("123456785", now)
	if p.CreatedBy == nil || *p.CreatedBy != "123456785" || p.UpdatedAt == nil {
		t.Fatalf("expected audit fields to be stamped: %+v", p.Audit)
	}
	p.StampCreate(" ", now)
	if p.CreatedBy != nil {
		t.Fatalf("blank actor should leave creado_por null")
	}
}
