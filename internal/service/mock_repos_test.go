package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/repository"
)

// In-memory repository doubles. They are mutex-guarded because the admission
// tests hit them from many goroutines at once.

// --- Mock LessonRepository ---

type mockLessonRepo struct {
	mu      sync.Mutex
	lessons map[primitive.ObjectID]*domain.Lesson
}

func newMockLessonRepo() *mockLessonRepo {
	return &mockLessonRepo{lessons: make(map[primitive.ObjectID]*domain.Lesson)}
}

func (m *mockLessonRepo) Create(_ context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same uniqueness the mongo index enforces.
	for _, existing := range m.lessons {
		if existing.TenantID == lesson.TenantID &&
			existing.StartTime.Equal(lesson.StartTime) &&
			existing.EndTime.Equal(lesson.EndTime) &&
			existing.Location == lesson.Location {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}

	if lesson.ID == primitive.NilObjectID {
		lesson.ID = primitive.NewObjectID()
	}
	copied := *lesson
	m.lessons[lesson.ID] = &copied
	return lesson.ID, nil
}

func (m *mockLessonRepo) GetByID(_ context.Context, tenantID string, id primitive.ObjectID) (*domain.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lessons[id]; ok && l.TenantID == tenantID {
		copied := *l
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockLessonRepo) Find(_ context.Context, filter repository.LessonFilter) ([]domain.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Lesson
	for _, l := range m.lessons {
		if l.TenantID != filter.TenantID {
			continue
		}
		if filter.From != nil && l.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.StartTime.After(*filter.To) {
			continue
		}
		if filter.Location != nil && l.Location != *filter.Location {
			continue
		}
		if filter.OnlyActive && !l.Active {
			continue
		}
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (m *mockLessonRepo) FindByKey(_ context.Context, tenantID string, start, end time.Time, location string) (*domain.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lessons {
		if l.TenantID == tenantID &&
			l.StartTime.Equal(start) &&
			l.EndTime.Equal(end) &&
			l.Location == location {
			copied := *l
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockLessonRepo) DeleteByIDs(_ context.Context, tenantID string, ids []primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if l, ok := m.lessons[id]; ok && l.TenantID == tenantID {
			delete(m.lessons, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Mock BookingRepository ---

type mockBookingRepo struct {
	mu       sync.Mutex
	bookings map[primitive.ObjectID]*domain.Booking
	order    []primitive.ObjectID // insertion order, stands in for CreatedAt sorting
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[primitive.ObjectID]*domain.Booking)}
}

func (m *mockBookingRepo) Create(_ context.Context, booking *domain.Booking) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID == primitive.NilObjectID {
		booking.ID = primitive.NewObjectID()
	}
	booking.CreatedAt = time.Now().UTC()
	copied := *booking
	m.bookings[booking.ID] = &copied
	m.order = append(m.order, booking.ID)
	return booking.ID, nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, tenantID string, id primitive.ObjectID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok && b.TenantID == tenantID {
		copied := *b
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockBookingRepo) Find(_ context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Booking
	for _, id := range m.order {
		b := m.bookings[id]
		if b == nil || b.TenantID != filter.TenantID {
			continue
		}
		if filter.LessonID != nil && b.LessonID != *filter.LessonID {
			continue
		}
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsState(filter.Statuses, b.Status) {
			continue
		}
		result = append(result, *b)
	}
	return result, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, tenantID string, id primitive.ObjectID, status domain.BookingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenantID {
		return repository.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockBookingRepo) FindActiveByLessonAndUser(_ context.Context, tenantID string, lessonID, userID primitive.ObjectID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		b := m.bookings[id]
		if b != nil && b.TenantID == tenantID && b.LessonID == lessonID && b.UserID == userID && b.IsActive() {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockBookingRepo) FirstWaiting(_ context.Context, tenantID string, lessonID primitive.ObjectID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		b := m.bookings[id]
		if b != nil && b.TenantID == tenantID && b.LessonID == lessonID && b.Status == domain.BookingWaiting {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockBookingRepo) CountConfirmedByLesson(_ context.Context, tenantID string, lessonID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.LessonID == lessonID && b.Status == domain.BookingConfirmed {
			count++
		}
	}
	return count, nil
}

func (m *mockBookingRepo) CountConfirmedByLessons(_ context.Context, tenantID string, lessonIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[primitive.ObjectID]int, len(lessonIDs))
	for _, lessonID := range lessonIDs {
		for _, b := range m.bookings {
			if b.TenantID == tenantID && b.LessonID == lessonID && b.Status == domain.BookingConfirmed {
				counts[lessonID]++
			}
		}
	}
	return counts, nil
}

func (m *mockBookingRepo) CountConfirmedByUserBetween(_ context.Context, tenantID string, userID primitive.ObjectID, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.bookings {
		if b.TenantID != tenantID || b.UserID != userID || b.Status != domain.BookingConfirmed {
			continue
		}
		if b.LessonStartTime.Before(from) || b.LessonStartTime.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *mockBookingRepo) HasConfirmedByUser(_ context.Context, tenantID string, userID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.UserID == userID && b.Status == domain.BookingConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBookingRepo) ChildConfirmedOnLesson(_ context.Context, tenantID string, lessonID, parentUserID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.LessonID == lessonID && b.Status == domain.BookingConfirmed &&
			b.ParentUserID != nil && *b.ParentUserID == parentUserID {
			return true, nil
		}
	}
	return false, nil
}

func containsState(states []domain.BookingState, s domain.BookingState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

// --- Mock ScheduleRepository ---

type mockScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*domain.WeeklySchedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*domain.WeeklySchedule)}
}

func (m *mockScheduleRepo) Get(_ context.Context, tenantID string) (*domain.WeeklySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[tenantID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockScheduleRepo) Upsert(_ context.Context, schedule *domain.WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if schedule.ID == primitive.NilObjectID {
		schedule.ID = primitive.NewObjectID()
	}
	copied := *schedule
	m.schedules[schedule.TenantID] = &copied
	return nil
}

func (m *mockScheduleRepo) ListTenantIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.schedules))
	for id := range m.schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// --- Mock ClassOptionRepository ---

type mockClassOptionRepo struct {
	mu      sync.Mutex
	options map[primitive.ObjectID]*domain.ClassOption
}

func newMockClassOptionRepo() *mockClassOptionRepo {
	return &mockClassOptionRepo{options: make(map[primitive.ObjectID]*domain.ClassOption)}
}

func (m *mockClassOptionRepo) add(option *domain.ClassOption) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if option.ID == primitive.NilObjectID {
		option.ID = primitive.NewObjectID()
	}
	m.options[option.ID] = option
	return option.ID
}

func (m *mockClassOptionRepo) GetByID(_ context.Context, tenantID string, id primitive.ObjectID) (*domain.ClassOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.options[id]; ok && o.TenantID == tenantID {
		copied := *o
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

// --- Mock SubscriptionRepository ---

type mockSubscriptionRepo struct {
	mu   sync.Mutex
	subs []*domain.Subscription
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{}
}

func (m *mockSubscriptionRepo) FindActiveByUser(_ context.Context, tenantID string, userID primitive.ObjectID, now time.Time) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.TenantID == tenantID && s.UserID == userID && s.Covers(now) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- Mock PlanRepository ---

type mockPlanRepo struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]*domain.Plan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[primitive.ObjectID]*domain.Plan)}
}

func (m *mockPlanRepo) add(plan *domain.Plan) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == primitive.NilObjectID {
		plan.ID = primitive.NewObjectID()
	}
	m.plans[plan.ID] = plan
	return plan.ID
}

func (m *mockPlanRepo) GetByID(_ context.Context, tenantID string, id primitive.ObjectID) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[id]; ok && p.TenantID == tenantID {
		copied := *p
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}
