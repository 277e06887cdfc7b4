package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/api/middleware"
	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
)

type testAssignmentsService struct {
	claimFn    func(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error)
	releaseFn  func(ctx context.Context, assignmentID, staffID uuid.UUID, reason string) (*models.Assignment, error)
	completeFn func(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error)
	listFn     func(ctx context.Context, staffID uuid.UUID, params pagination.Params) (*assignments.ListResult, error)
}

func (s *testAssignmentsService) Claim(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error) {
	if s.claimFn != nil {
		return s.claimFn(ctx, assignmentID, staffID)
	}
	return nil, nil
}

func (s *testAssignmentsService) Release(ctx context.Context, assignmentID, staffID uuid.UUID, reason string) (*models.Assignment, error) {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, assignmentID, staffID, reason)
	}
	return nil, nil
}

func (s *testAssignmentsService) Complete(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, assignmentID, staffID)
	}
	return nil, nil
}

func (s *testAssignmentsService) Cancel(ctx context.Context, assignmentID uuid.UUID) (*models.Assignment, error) {
	return nil, nil
}

func (s *testAssignmentsService) ListForStaff(ctx context.Context, staffID uuid.UUID, params pagination.Params) (*assignments.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, staffID, params)
	}
	return &assignments.ListResult{}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestClaimAssignmentSuccess(t *testing.T) {
	staffID := uuid.New()
	assignmentID := uuid.New()
	svc := &testAssignmentsService{
		claimFn: func(ctx context.Context, aid, sid uuid.UUID) (*models.Assignment, error) {
			if aid != assignmentID {
				t.Fatalf("unexpected assignment %s", aid)
			}
			if sid != staffID {
				t.Fatalf("unexpected staff %s", sid)
			}
			return &models.Assignment{ID: aid, Status: enums.AssignmentStatusProcessing, AssigneeID: &sid}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID.String()+"/claim", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), staffID.String()))
	req = addRouteParam(req, "assignmentId", assignmentID.String())

	resp := httptest.NewRecorder()
	ClaimAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data models.Assignment `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.AssignmentStatusProcessing {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestClaimAssignmentConflict(t *testing.T) {
	svc := &testAssignmentsService{
		claimFn: func(ctx context.Context, aid, sid uuid.UUID) (*models.Assignment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyClaimed, "assignment already claimed")
		},
	}

	assignmentID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID+"/claim", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "assignmentId", assignmentID)

	resp := httptest.NewRecorder()
	ClaimAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != "ALREADY_CLAIMED" {
		t.Fatalf("unexpected error code %s", envelope.Error.Code)
	}
}

func TestClaimAssignmentMissingStaffContext(t *testing.T) {
	assignmentID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID+"/claim", nil)
	req = addRouteParam(req, "assignmentId", assignmentID)

	resp := httptest.NewRecorder()
	ClaimAssignment(&testAssignmentsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestClaimAssignmentInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/invalid/claim", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "assignmentId", "invalid")

	resp := httptest.NewRecorder()
	ClaimAssignment(&testAssignmentsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestReleaseAssignmentPassesReason(t *testing.T) {
	staffID := uuid.New()
	assignmentID := uuid.New()
	svc := &testAssignmentsService{
		releaseFn: func(ctx context.Context, aid, sid uuid.UUID, reason string) (*models.Assignment, error) {
			if reason != "table mix-up" {
				t.Fatalf("unexpected reason %q", reason)
			}
			return &models.Assignment{ID: aid, Status: enums.AssignmentStatusWaiting}, nil
		},
	}

	body := strings.NewReader(`{"reason":"table mix-up"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID.String()+"/release", body)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithStaffID(req.Context(), staffID.String()))
	req = addRouteParam(req, "assignmentId", assignmentID.String())

	resp := httptest.NewRecorder()
	ReleaseAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReleaseAssignmentBodyOptional(t *testing.T) {
	staffID := uuid.New()
	assignmentID := uuid.New()
	svc := &testAssignmentsService{
		releaseFn: func(ctx context.Context, aid, sid uuid.UUID, reason string) (*models.Assignment, error) {
			if reason != "" {
				t.Fatalf("expected empty reason, got %q", reason)
			}
			return &models.Assignment{ID: aid, Status: enums.AssignmentStatusWaiting}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID.String()+"/release", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), staffID.String()))
	req = addRouteParam(req, "assignmentId", assignmentID.String())

	resp := httptest.NewRecorder()
	ReleaseAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCompleteAssignmentForbidden(t *testing.T) {
	svc := &testAssignmentsService{
		completeFn: func(ctx context.Context, aid, sid uuid.UUID) (*models.Assignment, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller is not the current assignee")
		},
	}

	assignmentID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/assignments/"+assignmentID+"/complete", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "assignmentId", assignmentID)

	resp := httptest.NewRecorder()
	CompleteAssignment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListAssignmentsPagination(t *testing.T) {
	staffID := uuid.New()
	svc := &testAssignmentsService{
		listFn: func(ctx context.Context, sid uuid.UUID, params pagination.Params) (*assignments.ListResult, error) {
			if params.Page != 2 || params.Limit != 10 {
				t.Fatalf("unexpected params %+v", params)
			}
			return &assignments.ListResult{
				Items: []assignments.StaffAssignmentView{},
				Meta:  pagination.NewMeta(params.Normalize(), 0),
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/assignments?page=2&limit=10", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), staffID.String()))

	resp := httptest.NewRecorder()
	ListAssignments(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListAssignmentsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/assignments?limit=0", nil)
	req = req.WithContext(middleware.WithStaffID(req.Context(), uuid.NewString()))

	resp := httptest.NewRecorder()
	ListAssignments(&testAssignmentsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
