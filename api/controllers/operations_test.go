package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/internal/tasks"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

type testTasksService struct {
	assignFn       func(ctx context.Context, input tasks.AssignInput) (*models.OperationTask, error)
	setValidatedFn func(ctx context.Context, actorUserID, taskID uuid.UUID, validated bool, justification string) (*models.OperationTask, error)
	startFn        func(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error)
	completeFn     func(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error)
	blockFn        func(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error)
	cancelFn       func(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error)
	getFn          func(ctx context.Context, id uuid.UUID) (*models.OperationTask, error)
	listFn         func(ctx context.Context, filter tasks.ListFilter, params pagination.Params) (pagination.Page[models.OperationTask], error)
}

func (s *testTasksService) Assign(ctx context.Context, input tasks.AssignInput) (*models.OperationTask, error) {
	if s.assignFn != nil {
		return s.assignFn(ctx, input)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) SetValidated(ctx context.Context, actorUserID, taskID uuid.UUID, validated bool, justification string) (*models.OperationTask, error) {
	if s.setValidatedFn != nil {
		return s.setValidatedFn(ctx, actorUserID, taskID, validated, justification)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) Start(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error) {
	if s.startFn != nil {
		return s.startFn(ctx, actorUserID, taskID)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) Complete(ctx context.Context, actorUserID, taskID uuid.UUID) (*models.OperationTask, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, actorUserID, taskID)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) Block(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
	if s.blockFn != nil {
		return s.blockFn(ctx, actorUserID, taskID, reason)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) Cancel(ctx context.Context, actorUserID, taskID uuid.UUID, reason string) (*models.OperationTask, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, actorUserID, taskID, reason)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) Get(ctx context.Context, id uuid.UUID) (*models.OperationTask, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &models.OperationTask{}, nil
}

func (s *testTasksService) List(ctx context.Context, filter tasks.ListFilter, params pagination.Params) (pagination.Page[models.OperationTask], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter, params)
	}
	return pagination.Page[models.OperationTask]{}, nil
}

func (s *testTasksService) StatusCounts(ctx context.Context) ([]tasks.StatusCount, error) {
	return []tasks.StatusCount{}, nil
}

func (s *testTasksService) TypeCounts(ctx context.Context) ([]tasks.TypeCount, error) {
	return []tasks.TypeCount{}, nil
}

func TestTaskAssignSuccess(t *testing.T) {
	actorID := uuid.New()
	taskID := uuid.New()
	employeeID := uuid.New()
	var captured tasks.AssignInput
	svc := &testTasksService{
		assignFn: func(ctx context.Context, input tasks.AssignInput) (*models.OperationTask, error) {
			captured = input
			return &models.OperationTask{ID: input.TaskID, Status: enums.TaskStatusAssigned}, nil
		},
	}

	body := `{"employee_id":"` + employeeID.String() + `","justification":"closest free operator"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+taskID.String()+"/assign", strings.NewReader(body))
	req = withActor(req, actorID)
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskAssign(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ActorUserID != actorID || captured.TaskID != taskID || captured.EmployeeID != employeeID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.Justification != "closest free operator" {
		t.Fatalf("unexpected justification %q", captured.Justification)
	}
}

func TestTaskAssignInvalidEmployee(t *testing.T) {
	taskID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+taskID.String()+"/assign", strings.NewReader(`{"employee_id":"nope"}`))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskAssign(&testTasksService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTaskSetValidatedRequiresFlag(t *testing.T) {
	taskID := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/tasks/"+taskID.String()+"/validated", strings.NewReader(`{}`))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskSetValidated(&testTasksService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTaskSetValidatedPassesFalse(t *testing.T) {
	taskID := uuid.New()
	var gotValidated *bool
	svc := &testTasksService{
		setValidatedFn: func(ctx context.Context, actorUserID, id uuid.UUID, validated bool, justification string) (*models.OperationTask, error) {
			gotValidated = &validated
			return &models.OperationTask{ID: id}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tasks/"+taskID.String()+"/validated", strings.NewReader(`{"validated":false}`))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskSetValidated(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotValidated == nil || *gotValidated {
		t.Fatal("expected validated=false forwarded")
	}
}

func TestTaskStartPropagatesStateConflict(t *testing.T) {
	taskID := uuid.New()
	svc := &testTasksService{
		startFn: func(ctx context.Context, actorUserID, id uuid.UUID) (*models.OperationTask, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "task must be assigned before starting")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+taskID.String()+"/start", nil)
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskStart(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Message != "task must be assigned before starting" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestTaskBlockForwardsReason(t *testing.T) {
	taskID := uuid.New()
	var gotReason string
	svc := &testTasksService{
		blockFn: func(ctx context.Context, actorUserID, id uuid.UUID, reason string) (*models.OperationTask, error) {
			gotReason = reason
			return &models.OperationTask{ID: id, Status: enums.TaskStatusBlocked}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+taskID.String()+"/block", strings.NewReader(`{"reason":"aisle obstructed"}`))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskBlock(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotReason != "aisle obstructed" {
		t.Fatalf("unexpected reason %q", gotReason)
	}
}

func TestTasksListParsesFilters(t *testing.T) {
	assigneeID := uuid.New()
	var captured tasks.ListFilter
	svc := &testTasksService{
		listFn: func(ctx context.Context, filter tasks.ListFilter, p pagination.Params) (pagination.Page[models.OperationTask], error) {
			captured = filter
			return pagination.NewPage([]models.OperationTask{{ID: uuid.New()}}, 1, p), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?status=ASSIGNED&assigneeId="+assigneeID.String()+"&validated=true", nil)
	resp := httptest.NewRecorder()
	TasksList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Status == nil || *captured.Status != enums.TaskStatusAssigned {
		t.Fatal("expected status filter")
	}
	if captured.AssignedToUserID == nil || *captured.AssignedToUserID != assigneeID {
		t.Fatal("expected assignee filter")
	}
	if captured.Validated == nil || !*captured.Validated {
		t.Fatal("expected validated filter")
	}
}

func TestTasksListRejectsBadStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?status=WAITING", nil)
	resp := httptest.NewRecorder()
	TasksList(&testTasksService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTaskGetNotFound(t *testing.T) {
	taskID := uuid.New()
	svc := &testTasksService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.OperationTask, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID.String(), nil)
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()
	TaskGet(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
