package database

import (
	"strings"
	"testing"
)

func TestMigrations(t *testing.T) {
	ms, err := Migrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) < 2 {
		t.Fatalf("migrations = %d, want at least 2", len(ms))
	}
	for i := 1; i < len(ms); i++ {
		if ms[i-1].Version >= ms[i].Version {
			t.Errorf("migrations out of order: %s before %s", ms[i-1].Version, ms[i].Version)
		}
	}

	schema := ""
	for _, m := range ms {
		schema += m.SQL
	}
	for _, want := range []string{
		"physical_cards_link_matches_status",
		"profiles_username_key",
		"profiles_one_primary_per_owner",
		"profile_daily_stats",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema is missing %s", want)
		}
	}
}
