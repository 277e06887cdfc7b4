package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/api/responses"
	"github.com/tablewise/floorstaff-backend/api/validators"
	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

type ensureAssignmentRequest struct {
	OrderRef  uuid.UUID `json:"order_ref" validate:"required"`
	OrderKind string    `json:"order_kind" validate:"required"`
	Priority  int       `json:"priority" validate:"gte=0,lte=100"`
}

type cancelAssignmentRequest struct {
	OrderRef  uuid.UUID `json:"order_ref" validate:"required"`
	OrderKind string    `json:"order_kind" validate:"required"`
}

// EnsureAssignment creates the assignment for an upstream order event, or
// returns the existing active one. Called by the order and reservation
// services, not by staff clients.
func EnsureAssignment(fac assignments.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fac == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment factory unavailable"))
			return
		}

		var req ensureAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := parseOrderKind(req.OrderKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := fac.EnsureAssignment(r.Context(), req.OrderRef, kind, req.Priority)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// RefreshAssignment updates the priority of an order's active assignment.
func RefreshAssignment(fac assignments.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fac == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment factory unavailable"))
			return
		}

		var req ensureAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := parseOrderKind(req.OrderKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := fac.RefreshAssignment(r.Context(), req.OrderRef, kind, req.Priority)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// CancelAssignment closes an order's active assignment after the upstream
// order was cancelled.
func CancelAssignment(fac assignments.Factory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fac == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment factory unavailable"))
			return
		}

		var req cancelAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := parseOrderKind(req.OrderKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := fac.CancelForOrder(r.Context(), req.OrderRef, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

func parseOrderKind(raw string) (enums.OrderKind, error) {
	kind, err := enums.ParseOrderKind(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order kind")
	}
	return kind, nil
}
