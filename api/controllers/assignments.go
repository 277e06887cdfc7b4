package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/api/middleware"
	"github.com/tablewise/floorstaff-backend/api/responses"
	"github.com/tablewise/floorstaff-backend/api/validators"
	"github.com/tablewise/floorstaff-backend/internal/assignments"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
)

// ListAssignments returns the caller's view of the assignment pool: every
// waiting assignment plus the ones the caller is currently processing.
func ListAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		staffID, err := staffIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListForStaff(r.Context(), staffID, pagination.Params{Page: page, Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ClaimAssignment attempts to claim the assignment for the caller.
func ClaimAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, assignmentID, err := claimRequestIDs(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claimed, err := svc.Claim(r.Context(), assignmentID, staffID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, claimed)
	}
}

type releaseAssignmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ReleaseAssignment returns a processing assignment to the pool and records
// the caller's rejection.
func ReleaseAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, assignmentID, err := claimRequestIDs(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req releaseAssignmentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		released, err := svc.Release(r.Context(), assignmentID, staffID, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, released)
	}
}

// CompleteAssignment marks the caller's processing assignment as done.
func CompleteAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, assignmentID, err := claimRequestIDs(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		completed, err := svc.Complete(r.Context(), assignmentID, staffID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, completed)
	}
}

func staffIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.StaffIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff context missing")
	}
	staffID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid staff id")
	}
	return staffID, nil
}

func claimRequestIDs(r *http.Request, svc assignments.Service) (uuid.UUID, uuid.UUID, error) {
	if svc == nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable")
	}
	staffID, err := staffIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	raw := strings.TrimSpace(chi.URLParam(r, "assignmentId"))
	assignmentID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment id")
	}
	return staffID, assignmentID, nil
}
