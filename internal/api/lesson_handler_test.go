package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/service"
)

const (
	testSecret = "test-secret"
	testTenant = "tenant-1"
)

// --- Stub services ---

type stubLessonService struct {
	gotFrom, gotTo time.Time
	gotViewer      *service.Viewer
}

func (s *stubLessonService) GetLessons(_ context.Context, _ string, from, to time.Time, viewer *service.Viewer) ([]service.LessonDetails, error) {
	s.gotFrom, s.gotTo, s.gotViewer = from, to, viewer
	return nil, nil
}

func (s *stubLessonService) GetLesson(_ context.Context, _ string, _ primitive.ObjectID, viewer *service.Viewer) (*service.LessonDetails, error) {
	s.gotViewer = viewer
	return nil, service.ErrLessonNotFound
}

func (s *stubLessonService) DeleteLesson(context.Context, string, primitive.ObjectID) error {
	return nil
}

type stubBookingService struct{}

func (stubBookingService) Admit(context.Context, service.AdmitRequest) (*service.BookingDecision, error) {
	return &service.BookingDecision{Result: service.AdmissionConfirmed}, nil
}

func (stubBookingService) Cancel(context.Context, string, primitive.ObjectID, primitive.ObjectID, bool) (*domain.Booking, error) {
	return nil, service.ErrBookingNotFound
}

func (stubBookingService) PromoteNextWaiting(context.Context, string, primitive.ObjectID) (*domain.Booking, error) {
	return nil, service.ErrWaitlistEmpty
}

type stubScheduleService struct{}

func (stubScheduleService) GetSchedule(context.Context, string) (*domain.WeeklySchedule, error) {
	return nil, service.ErrScheduleNotFound
}

func (stubScheduleService) SaveSchedule(context.Context, *domain.WeeklySchedule) error { return nil }

func (stubScheduleService) Expand(context.Context, string, time.Time, time.Time, bool) (*service.ExpandSummary, error) {
	return &service.ExpandSummary{}, nil
}

// --- Helpers ---

func dublin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newTestRouter(t *testing.T, lessons *stubLessonService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testSecret, 60, dublin(t), lessons, stubBookingService{}, stubScheduleService{})
	return router
}

func signToken(t *testing.T, userID primitive.ObjectID, role domain.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwtClaims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// --- Tests ---

func TestGetLessonsAnonymous(t *testing.T) {
	lessons := &stubLessonService{}
	router := newTestRouter(t, lessons)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons?from=2025-06-15&to=2025-06-16", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous lesson listing = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if lessons.gotViewer != nil {
		t.Error("anonymous request must reach the service with a nil viewer")
	}
}

func TestGetLessonsWindowParsedInConfiguredZone(t *testing.T) {
	lessons := &stubLessonService{}
	router := newTestRouter(t, lessons)
	loc := dublin(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons?from=2025-06-15&to=2025-06-16", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("lesson listing = %d, want 200", rec.Code)
	}

	wantFrom := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)
	if !lessons.gotFrom.Equal(wantFrom) {
		t.Errorf("from = %v, want midnight in %s (%v)", lessons.gotFrom, loc, wantFrom)
	}
	// The final day is included up to its last millisecond, local time.
	wantTo := time.Date(2025, 6, 16, 23, 59, 59, int(999*time.Millisecond), loc)
	if !lessons.gotTo.Equal(wantTo) {
		t.Errorf("to = %v, want %v", lessons.gotTo, wantTo)
	}
}

func TestGetLessonsAuthenticatedViewer(t *testing.T) {
	lessons := &stubLessonService{}
	router := newTestRouter(t, lessons)
	userID := primitive.NewObjectID()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons?from=2025-06-15&to=2025-06-16", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, domain.RoleMember))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated lesson listing = %d, want 200", rec.Code)
	}
	if lessons.gotViewer == nil || lessons.gotViewer.UserID != userID {
		t.Error("the token's user must become the status viewer")
	}
}

func TestGetLessonsRejectsInvalidToken(t *testing.T) {
	lessons := &stubLessonService{}
	router := newTestRouter(t, lessons)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons?from=2025-06-15&to=2025-06-16", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// A token that is present but broken is an error, not an anonymous read.
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token = %d, want 401", rec.Code)
	}
}

func TestLessonMutationsRequireAuth(t *testing.T) {
	lessons := &stubLessonService{}
	router := newTestRouter(t, lessons)
	lessonID := primitive.NewObjectID().Hex()

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodDelete, "/api/v1/lessons/" + lessonID},
		{http.MethodPost, "/api/v1/lessons/" + lessonID + "/bookings"},
		{http.MethodPost, "/api/v1/lessons/" + lessonID + "/promote"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("X-Tenant-ID", testTenant)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without a token = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}
