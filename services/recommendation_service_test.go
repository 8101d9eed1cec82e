package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGetRecs(t *testing.T) {
	db := newTestDB(t)
	advisor := &fakeAdvisor{reply: "- Tambah sayur bening\n\n• Ganti es teh manis dengan air putih\n* Pilih buah sebagai camilan\n"}
	svc := NewRecService(db, advisor, time.UTC)
	now := time.Date(2026, 6, 3, 15, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	u := createUser(t, db, "coach@example.com", onboarded)
	addScan(t, db, u.ID, now.Add(-6*time.Hour), 650, false, "Nasi Goreng")
	addScan(t, db, u.ID, now.AddDate(0, 0, -1), 900, false, "Kemarin")

	recs, err := svc.GetRecs(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Tambah sayur bening", "Ganti es teh manis dengan air putih", "Pilih buah sebagai camilan"}
	if len(recs) != len(want) {
		t.Fatalf("recs = %q", recs)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i], want[i])
		}
	}

	for _, s := range []string{"Daily calorie target: 2468 kcal", "Nasi Goreng", "Total so far: 650 kcal"} {
		if !strings.Contains(advisor.prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
	if strings.Contains(advisor.prompt, "Kemarin") {
		t.Error("yesterday's scan leaked into the prompt")
	}

	if _, err := svc.GetRecs(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestBuildRecPromptWithoutProfile(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db, "blank@example.com", nil)
	p := buildRecPrompt(u, nil)
	if !strings.Contains(p, "profile not completed") || !strings.Contains(p, "nothing logged yet") {
		t.Errorf("prompt = %s", p)
	}
}
