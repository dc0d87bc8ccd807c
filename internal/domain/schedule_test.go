package domain

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/timeutil"
)

func validSchedule() *WeeklySchedule {
	s := &WeeklySchedule{
		TenantID:      "tenant-1",
		ValidFrom:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:       time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		ClassOptionID: primitive.NewObjectID(),
	}
	s.Days[0] = DaySchedule{TimeSlots: []TimeSlot{
		{
			StartTime: timeutil.TimeOfDay{Hour: 18, Minute: 0},
			EndTime:   timeutil.TimeOfDay{Hour: 19, Minute: 30},
			Location:  "main mat",
		},
	}}
	return s
}

func TestScheduleValidateAccepts(t *testing.T) {
	if err := validSchedule().Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}

func TestScheduleValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*WeeklySchedule)
	}{
		{
			name:   "missing tenant",
			mutate: func(s *WeeklySchedule) { s.TenantID = "" },
		},
		{
			name:   "missing default class option",
			mutate: func(s *WeeklySchedule) { s.ClassOptionID = primitive.NilObjectID },
		},
		{
			name: "validity window reversed",
			mutate: func(s *WeeklySchedule) {
				s.ValidFrom, s.ValidTo = s.ValidTo, s.ValidFrom
			},
		},
		{
			name:   "negative lock-out",
			mutate: func(s *WeeklySchedule) { s.LockOutMinutes = -10 },
		},
		{
			name: "slot ends before it starts",
			mutate: func(s *WeeklySchedule) {
				s.Days[0].TimeSlots[0].EndTime = timeutil.TimeOfDay{Hour: 17, Minute: 0}
			},
		},
		{
			name: "zero-length slot",
			mutate: func(s *WeeklySchedule) {
				s.Days[0].TimeSlots[0].EndTime = s.Days[0].TimeSlots[0].StartTime
			},
		},
		{
			name: "overlapping slots at one location",
			mutate: func(s *WeeklySchedule) {
				s.Days[0].TimeSlots = append(s.Days[0].TimeSlots, TimeSlot{
					StartTime: timeutil.TimeOfDay{Hour: 19, Minute: 0},
					EndTime:   timeutil.TimeOfDay{Hour: 20, Minute: 0},
					Location:  "main mat",
				})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSchedule()
			tc.mutate(s)
			if err := s.Validate(); !errors.Is(err, ErrScheduleInvalid) {
				t.Errorf("expected ErrScheduleInvalid, got %v", err)
			}
		})
	}
}

func TestScheduleValidateAllowsOverlapAcrossLocations(t *testing.T) {
	s := validSchedule()
	s.Days[0].TimeSlots = append(s.Days[0].TimeSlots, TimeSlot{
		StartTime: timeutil.TimeOfDay{Hour: 18, Minute: 30},
		EndTime:   timeutil.TimeOfDay{Hour: 19, Minute: 30},
		Location:  "upstairs studio",
	})
	if err := s.Validate(); err != nil {
		t.Fatalf("parallel slots at different locations should be valid: %v", err)
	}
}

func TestScheduleValidateAllowsBackToBackSlots(t *testing.T) {
	// Touching boundaries (one ends exactly when the next starts) are fine.
	s := validSchedule()
	s.Days[0].TimeSlots = append(s.Days[0].TimeSlots, TimeSlot{
		StartTime: timeutil.TimeOfDay{Hour: 19, Minute: 30},
		EndTime:   timeutil.TimeOfDay{Hour: 21, Minute: 0},
		Location:  "main mat",
	})
	if err := s.Validate(); err != nil {
		t.Fatalf("back-to-back slots should be valid: %v", err)
	}
}

func TestSlotOverrides(t *testing.T) {
	s := validSchedule()
	s.LockOutMinutes = 60

	plain := TimeSlot{}
	if got := s.SlotClassOption(plain); got != s.ClassOptionID {
		t.Error("slot without override should inherit the schedule class option")
	}
	if got := s.SlotLockOut(plain); got != 60 {
		t.Errorf("slot without override should inherit lock-out 60, got %d", got)
	}

	override := primitive.NewObjectID()
	zero := 0
	slot := TimeSlot{ClassOptionID: &override, LockOutMinutes: &zero}
	if got := s.SlotClassOption(slot); got != override {
		t.Error("slot class option override ignored")
	}
	// An explicit zero disables the lock-out rather than inheriting.
	if got := s.SlotLockOut(slot); got != 0 {
		t.Errorf("explicit zero lock-out should win, got %d", got)
	}
}

func TestDayIndex(t *testing.T) {
	cases := []struct {
		weekday time.Weekday
		want    int
	}{
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Wednesday, 2},
		{time.Thursday, 3},
		{time.Friday, 4},
		{time.Saturday, 5},
		{time.Sunday, 6},
	}
	for _, tc := range cases {
		if got := DayIndex(tc.weekday); got != tc.want {
			t.Errorf("DayIndex(%v) = %d, want %d", tc.weekday, got, tc.want)
		}
	}
}

func TestClassOptionTrialable(t *testing.T) {
	co := &ClassOption{}
	if co.Trialable() {
		t.Error("class option without payment methods is not trialable")
	}

	co.PaymentMethods = &PaymentMethods{AllowedDropIn: &AllowedDropIn{
		Enabled: true,
		DiscountTiers: []DiscountTier{
			{Type: "bulk", Quantity: 10, Discount: 15},
		},
	}}
	if co.Trialable() {
		t.Error("drop-in without a trial tier is not trialable")
	}

	co.PaymentMethods.AllowedDropIn.DiscountTiers = append(
		co.PaymentMethods.AllowedDropIn.DiscountTiers,
		DiscountTier{Type: "trial", Quantity: 1, Discount: 100},
	)
	if !co.Trialable() {
		t.Error("trial tier should make the class option trialable")
	}
}
