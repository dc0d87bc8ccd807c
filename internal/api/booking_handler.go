package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/service"
)

// BookingHandler holds the booking service dependency.
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateBookingRequest defines the expected JSON for a booking attempt.
// Status must be "confirmed" or "waiting"; joining the waitlist is always an
// explicit request, the server never downgrades a confirmed attempt.
type CreateBookingRequest struct {
	Status      string `json:"status" binding:"required,oneof=confirmed waiting"`
	ChildUserID string `json:"childUserId" binding:"omitempty"` // book on behalf of a child account
}

// BookingResponse is the DTO for returning booking details.
type BookingResponse struct {
	ID              string              `json:"id"`
	LessonID        string              `json:"lessonId"`
	UserID          string              `json:"userId"`
	Status          domain.BookingState `json:"status"`
	LessonStartTime time.Time           `json:"lessonStartTime"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// DecisionResponse wraps the admission outcome.
type DecisionResponse struct {
	Result  string           `json:"result"`
	Reason  string           `json:"reason,omitempty"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

// MapBookingToResponse converts a domain.Booking to BookingResponse DTO.
func MapBookingToResponse(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}
	return &BookingResponse{
		ID:              b.ID.Hex(),
		LessonID:        b.LessonID.Hex(),
		UserID:          b.UserID.Hex(),
		Status:          b.Status,
		LessonStartTime: b.LessonStartTime,
		CreatedAt:       b.CreatedAt,
	}
}

// --- Handler Methods ---

// CreateBooking handles POST /lessons/:id/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	lessonID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lesson ID format.")
		return
	}

	callerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	admitReq := service.AdmitRequest{
		TenantID:  tenantID,
		LessonID:  lessonID,
		UserID:    callerID,
		Requested: domain.BookingState(req.Status),
	}

	// A child booking is recorded against the child's account with the
	// caller as parent.
	if req.ChildUserID != "" {
		childID, err := primitive.ObjectIDFromHex(req.ChildUserID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid child user ID format.")
			return
		}
		admitReq.UserID = childID
		admitReq.ParentUserID = &callerID
	}

	decision, err := h.bookingService.Admit(c.Request.Context(), admitReq)
	if err != nil {
		if errors.Is(err, service.ErrLessonNotFound) {
			abortWithError(c, http.StatusNotFound, "Lesson not found.")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to process booking.")
		}
		return
	}

	resp := DecisionResponse{
		Result:  string(decision.Result),
		Reason:  decision.Reason,
		Booking: MapBookingToResponse(decision.Booking),
	}

	switch decision.Result {
	case service.AdmissionRejected:
		// Rejections are part of the normal flow; the reason tells the user
		// why (full, closed, quota).
		c.JSON(http.StatusConflict, resp)
	default:
		c.JSON(http.StatusCreated, resp)
	}
}

// CancelBooking handles POST /bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid booking ID format.")
		return
	}

	callerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	role, _ := getUserRoleFromContext(c)

	booking, err := h.bookingService.Cancel(c.Request.Context(), tenantID, bookingID, callerID, role == domain.RoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			abortWithError(c, http.StatusNotFound, "Booking not found.")
		case errors.Is(err, service.ErrBookingNotOwned):
			abortWithError(c, http.StatusForbidden, "Booking belongs to another user.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to cancel booking.")
		}
		return
	}

	c.JSON(http.StatusOK, MapBookingToResponse(booking))
}

// PromoteNextWaiting handles POST /lessons/:id/promote (admin only).
// Cancellation never promotes automatically; this is the manual lever.
func (h *BookingHandler) PromoteNextWaiting(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	lessonID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid lesson ID format.")
		return
	}

	booking, err := h.bookingService.PromoteNextWaiting(c.Request.Context(), tenantID, lessonID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLessonNotFound):
			abortWithError(c, http.StatusNotFound, "Lesson not found.")
		case errors.Is(err, service.ErrWaitlistEmpty):
			abortWithError(c, http.StatusNotFound, "No waiting bookings to promote.")
		case errors.Is(err, service.ErrCapacityExceeded):
			abortWithError(c, http.StatusConflict, "Lesson is at capacity.")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to promote booking.")
		}
		return
	}

	c.JSON(http.StatusOK, MapBookingToResponse(booking))
}
