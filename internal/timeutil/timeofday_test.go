package timeutil

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "18:00", want: TimeOfDay{Hour: 18, Minute: 0}},
		{in: "9:05", want: TimeOfDay{Hour: 9, Minute: 5}},
		{in: "00:00", want: TimeOfDay{Hour: 0, Minute: 0}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "6:00 PM", want: TimeOfDay{Hour: 18, Minute: 0}},
		{in: "6:00PM", want: TimeOfDay{Hour: 18, Minute: 0}},
		{in: "12:00 AM", want: TimeOfDay{Hour: 0, Minute: 0}},
		{in: "12:30 PM", want: TimeOfDay{Hour: 12, Minute: 30}},
		{in: " 7:15 am ", want: TimeOfDay{Hour: 7, Minute: 15}},
		{in: "24:00", wantErr: true},
		{in: "18:60", wantErr: true},
		{in: "13:00 PM", wantErr: true},
		{in: "0:00 AM", wantErr: true},
		{in: "six pm", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTimeOfDayBeforeAndMinutes(t *testing.T) {
	early := TimeOfDay{Hour: 9, Minute: 30}
	late := TimeOfDay{Hour: 18, Minute: 0}

	if !early.Before(late) {
		t.Error("09:30 should be before 18:00")
	}
	if late.Before(early) {
		t.Error("18:00 should not be before 09:30")
	}
	if early.Before(early) {
		t.Error("a time is not before itself")
	}
	if got := late.Minutes(); got != 18*60 {
		t.Errorf("Minutes() = %d, want %d", got, 18*60)
	}
}

func TestAtResolvesWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// Dublin moves to IST (UTC+1) on 2025-03-30 at 01:00 UTC.
	winterDay := time.Date(2025, 3, 29, 0, 0, 0, 0, loc)
	summerDay := time.Date(2025, 3, 31, 0, 0, 0, 0, loc)
	slot := TimeOfDay{Hour: 18, Minute: 0}

	winter := At(winterDay, slot, loc)
	summer := At(summerDay, slot, loc)

	if got := winter.UTC().Hour(); got != 18 {
		t.Errorf("18:00 before DST should be 18:00 UTC, got %02d:00", got)
	}
	if got := summer.UTC().Hour(); got != 17 {
		t.Errorf("18:00 during IST should be 17:00 UTC, got %02d:00", got)
	}

	// The wall clock reading stays 18:00 on both days.
	for _, instant := range []time.Time{winter, summer} {
		if instant.In(loc).Hour() != 18 || instant.In(loc).Minute() != 0 {
			t.Errorf("wall clock drifted: got %s", instant.In(loc).Format("15:04"))
		}
	}

	// On the transition day itself, 02:30 local is already summer time.
	transitionDay := time.Date(2025, 3, 30, 0, 0, 0, 0, loc)
	earlySlot := At(transitionDay, TimeOfDay{Hour: 2, Minute: 30}, loc)
	if got := earlySlot.UTC().Format("15:04"); got != "01:30" {
		t.Errorf("02:30 local on the transition day should be 01:30 UTC, got %s", got)
	}
}

func TestDateOnly(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	instant := time.Date(2025, 6, 15, 22, 45, 12, 0, loc)
	got := DateOnly(instant, loc)
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %v, want %v", got, want)
	}

	// A UTC instant late in the evening is the next calendar day in a
	// zone ahead of UTC.
	utcEvening := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	got = DateOnly(utcEvening, loc)
	want = time.Date(2025, 6, 16, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("DateOnly across zones = %v, want %v", got, want)
	}
}
