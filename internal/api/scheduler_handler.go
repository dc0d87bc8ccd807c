package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"openmat/bookings-app/internal/domain"
	"openmat/bookings-app/internal/service"
	"openmat/bookings-app/internal/timeutil"
)

// SchedulerHandler holds the schedule service dependency plus the deployment
// defaults requests may omit: the lock-out window and the zone calendar dates
// are interpreted in.
type SchedulerHandler struct {
	scheduleService service.ScheduleService
	defaultLockOut  int
	loc             *time.Location
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(scheduleService service.ScheduleService, defaultLockOutMinutes int, loc *time.Location) *SchedulerHandler {
	return &SchedulerHandler{
		scheduleService: scheduleService,
		defaultLockOut:  defaultLockOutMinutes,
		loc:             loc,
	}
}

// --- DTOs for API (Data Transfer Objects) ---

// TimeSlotRequest is one slot within a day; times are wall-clock strings
// ("18:00" or "6:00 PM").
type TimeSlotRequest struct {
	StartTime      string `json:"startTime" binding:"required"`
	EndTime        string `json:"endTime" binding:"required"`
	ClassOptionID  string `json:"classOptionId" binding:"omitempty"`
	Location       string `json:"location" binding:"omitempty"`
	InstructorID   string `json:"instructorId" binding:"omitempty"`
	LockOutMinutes *int   `json:"lockOutMinutes" binding:"omitempty"`
}

// SaveScheduleRequest defines the expected JSON for storing the weekly
// schedule. Days is Monday-first and must hold exactly seven entries. An
// omitted lockOutMinutes falls back to the configured default; an explicit 0
// disables the window.
type SaveScheduleRequest struct {
	ValidFrom      string              `json:"validFrom" binding:"required"` // YYYY-MM-DD
	ValidTo        string              `json:"validTo" binding:"required"`
	LockOutMinutes *int                `json:"lockOutMinutes" binding:"omitempty,min=0"`
	ClassOptionID  string              `json:"classOptionId" binding:"required"`
	Days           [][]TimeSlotRequest `json:"days" binding:"required,len=7"`
}

// GenerateRequest triggers an expansion run.
type GenerateRequest struct {
	StartDate     string `json:"startDate" binding:"required"` // YYYY-MM-DD
	EndDate       string `json:"endDate" binding:"required"`
	ClearExisting bool   `json:"clearExisting"`
}

// --- Handler Methods ---

// GetSchedule handles GET /scheduler
func (h *SchedulerHandler) GetSchedule(c *gin.Context) {
	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	schedule, err := h.scheduleService.GetSchedule(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, service.ErrScheduleNotFound) {
			abortWithError(c, http.StatusNotFound, "No weekly schedule configured for this tenant.")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve schedule.")
		}
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// SaveSchedule handles PUT /scheduler (admin only). Validation failures
// (end before start, overlapping slots at one location) are rejected here,
// before any expansion can run.
func (h *SchedulerHandler) SaveSchedule(c *gin.Context) {
	var req SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	schedule, err := h.mapScheduleRequest(tenantID, &req)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.scheduleService.SaveSchedule(c.Request.Context(), schedule); err != nil {
		if errors.Is(err, domain.ErrScheduleInvalid) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to save schedule.")
		}
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// Generate handles POST /scheduler/generate (admin only). Returns the run
// summary; per-slot failures are listed in it rather than failing the call.
func (h *SchedulerHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	tenantID, err := getTenantIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to resolve tenant.")
		return
	}

	// Calendar dates are read in the deployment zone, the same zone lessons
	// are generated in.
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, h.loc)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid startDate (expected YYYY-MM-DD).")
		return
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, h.loc)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid endDate (expected YYYY-MM-DD).")
		return
	}

	summary, err := h.scheduleService.Expand(c.Request.Context(), tenantID, startDate, endDate, req.ClearExisting)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrScheduleNotFound):
			abortWithError(c, http.StatusNotFound, "No weekly schedule configured for this tenant.")
		case errors.Is(err, domain.ErrScheduleInvalid), errors.Is(err, service.ErrInvalidDateRange):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to generate lessons.")
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

// mapScheduleRequest converts the transport DTO into the domain schedule.
func (h *SchedulerHandler) mapScheduleRequest(tenantID string, req *SaveScheduleRequest) (*domain.WeeklySchedule, error) {
	validFrom, err := time.ParseInLocation("2006-01-02", req.ValidFrom, h.loc)
	if err != nil {
		return nil, errors.New("invalid validFrom (expected YYYY-MM-DD)")
	}
	validTo, err := time.ParseInLocation("2006-01-02", req.ValidTo, h.loc)
	if err != nil {
		return nil, errors.New("invalid validTo (expected YYYY-MM-DD)")
	}
	classOptionID, err := primitive.ObjectIDFromHex(req.ClassOptionID)
	if err != nil {
		return nil, errors.New("invalid classOptionId format")
	}

	lockOut := h.defaultLockOut
	if req.LockOutMinutes != nil {
		lockOut = *req.LockOutMinutes
	}

	schedule := &domain.WeeklySchedule{
		TenantID:       tenantID,
		ValidFrom:      validFrom,
		ValidTo:        validTo,
		LockOutMinutes: lockOut,
		ClassOptionID:  classOptionID,
	}

	for dayIdx, slots := range req.Days {
		daySlots := make([]domain.TimeSlot, 0, len(slots))
		for _, slotReq := range slots {
			start, err := timeutil.ParseTimeOfDay(slotReq.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := timeutil.ParseTimeOfDay(slotReq.EndTime)
			if err != nil {
				return nil, err
			}

			slot := domain.TimeSlot{
				StartTime:      start,
				EndTime:        end,
				Location:       slotReq.Location,
				LockOutMinutes: slotReq.LockOutMinutes,
			}
			if slotReq.ClassOptionID != "" {
				id, err := primitive.ObjectIDFromHex(slotReq.ClassOptionID)
				if err != nil {
					return nil, errors.New("invalid slot classOptionId format")
				}
				slot.ClassOptionID = &id
			}
			if slotReq.InstructorID != "" {
				id, err := primitive.ObjectIDFromHex(slotReq.InstructorID)
				if err != nil {
					return nil, errors.New("invalid slot instructorId format")
				}
				slot.InstructorID = &id
			}
			daySlots = append(daySlots, slot)
		}
		schedule.Days[dayIdx] = domain.DaySchedule{TimeSlots: daySlots}
	}

	return schedule, nil
}
