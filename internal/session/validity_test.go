package session

import (
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func at(y int, mo time.Month, d, h, m, s int) time.Time {
	return time.Date(y, mo, d, h, m, s, 0, ist)
}

func TestNextResetAfter(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"midnight rolls to same-day 5am", at(2025, 3, 10, 0, 30, 0), at(2025, 3, 10, 5, 0, 0)},
		{"one second before boundary", at(2025, 3, 10, 4, 59, 59), at(2025, 3, 10, 5, 0, 0)},
		{"exactly at boundary is strictly after", at(2025, 3, 10, 5, 0, 0), at(2025, 3, 11, 5, 0, 0)},
		{"evening rolls to next day", at(2025, 3, 10, 22, 15, 0), at(2025, 3, 11, 5, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextResetAfter(tc.t, ist)
			if !got.Equal(tc.want) {
				t.Errorf("NextResetAfter(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestSessionValidAt_BoundaryExact(t *testing.T) {
	sess := Session{Token: "jwt", AcquiredAt: at(2025, 3, 10, 4, 59, 59)}

	if !sess.ValidAt(at(2025, 3, 10, 4, 59, 59), ist) {
		t.Error("session must be valid immediately after acquisition")
	}
	if sess.ValidAt(at(2025, 3, 10, 5, 0, 0), ist) {
		t.Error("session acquired at 04:59:59 must be invalid at 05:00:00")
	}
}

func TestSessionValidAt_SurvivesUntilNextBoundary(t *testing.T) {
	sess := Session{Token: "jwt", AcquiredAt: at(2025, 3, 10, 9, 30, 0)}

	if !sess.ValidAt(at(2025, 3, 11, 4, 59, 59), ist) {
		t.Error("session should live until the next 05:00 boundary")
	}
	if sess.ValidAt(at(2025, 3, 11, 5, 0, 0), ist) {
		t.Error("session must die at the next 05:00 boundary")
	}
}

func TestSessionValidAt_ZeroValues(t *testing.T) {
	if (Session{}).ValidAt(at(2025, 3, 10, 10, 0, 0), ist) {
		t.Error("zero session must not be valid")
	}
	if (Session{Token: "jwt"}).ValidAt(at(2025, 3, 10, 10, 0, 0), ist) {
		t.Error("session without acquisition time must not be valid")
	}
}

func TestStore_PutGetInvalidate(t *testing.T) {
	st := NewStore()

	if _, ok := st.Get("angelone:A"); ok {
		t.Fatal("empty store returned a session")
	}

	st.Put("angelone:A", Session{Token: "t1"})
	st.Put("angelone:B", Session{Token: "t2"})

	got, ok := st.Get("angelone:A")
	if !ok || got.Token != "t1" {
		t.Fatalf("Get(A) = %+v, %v", got, ok)
	}

	st.Invalidate("angelone:A")
	if _, ok := st.Get("angelone:A"); ok {
		t.Error("invalidated session still present")
	}
	if got, _ := st.Get("angelone:B"); got.Token != "t2" {
		t.Error("invalidation must be identity-scoped")
	}
}
