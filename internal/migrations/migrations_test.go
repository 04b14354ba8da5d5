package migrations

import (
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	migs, err := listMigrations(files, "sql")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(migs) < 2 {
		t.Fatalf("expected embedded migrations, got %d", len(migs))
	}
	for i, mig := range migs {
		if mig.Version != i+1 {
			t.Fatalf("expected version %d at position %d, got %s", i+1, i, mig.Name)
		}
	}
}

func TestListMigrationsSortsNumerically(t *testing.T) {
	fsys := fstest.MapFS{
		"m/V10__late.sql":  {Data: []byte("SELECT 1")},
		"m/V2__second.sql": {Data: []byte("SELECT 1")},
		"m/V1__first.sql":  {Data: []byte("SELECT 1")},
		"m/README.md":      {Data: []byte("notes")},
	}
	migs, err := listMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{}
	for _, m := range migs {
		got = append(got, m.Name)
	}
	if len(got) != 3 || got[0] != "V1__first.sql" || got[1] != "V2__second.sql" || got[2] != "V10__late.sql" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestListMigrationsRejectsBadNames(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"no version": {"m/schema.sql": {Data: []byte("")}},
		"duplicate":  {"m/V1__a.sql": {Data: []byte("")}, "m/V1__b.sql": {Data: []byte("")}},
	}
	for name, fsys := range cases {
		if _, err := listMigrations(fsys, "m"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]int{"V1__schema.sql": 1, "V12__x.sql": 12}
	for name, want := range cases {
		got, ok := parseVersion(name)
		if !ok || got != want {
			t.Fatalf("%s: expected %d, got %d (%v)", name, want, got, ok)
		}
	}
	for _, name := range []string{"1__x.sql", "V__x.sql", "Vx__y.sql", "V3.sql"} {
		if _, ok := parseVersion(name); ok {
			t.Fatalf("%s: expected no version", name)
		}
	}
}
