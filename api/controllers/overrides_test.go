package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/internal/overrides"
	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	pkgerrors "github.com/novagile/wareflow-backend/pkg/errors"
	"github.com/novagile/wareflow-backend/pkg/pagination"
)

type testOverridesService struct {
	createFn           func(ctx context.Context, input overrides.CreateRecommendationInput) (*models.AIRecommendation, error)
	getFn              func(ctx context.Context, id uuid.UUID) (*overrides.RecommendationDetail, error)
	listFn             func(ctx context.Context, filter overrides.RecommendationFilter, params pagination.Params) (pagination.Page[models.AIRecommendation], error)
	approveFn          func(ctx context.Context, input overrides.ApproveInput) (*models.OverrideDecision, error)
	overrideFn         func(ctx context.Context, input overrides.OverrideInput) (*models.OverrideDecision, error)
	editFn             func(ctx context.Context, input overrides.OverrideInput) (*models.OverrideDecision, error)
	feedbackFn         func(ctx context.Context, actorUserID, recommendationID uuid.UUID, input overrides.FeedbackInput) (*models.RecommendationFeedback, error)
	taskOverrideFn     func(ctx context.Context, input overrides.TaskStatusOverrideInput) (*models.OperationTask, error)
	orderOverrideFn    func(ctx context.Context, input overrides.OrderStatusOverrideInput) (*models.Order, error)
	deliveryOverrideFn func(ctx context.Context, input overrides.DeliveryStatusOverrideInput) (*models.Delivery, error)
}

func (s *testOverridesService) CreateRecommendation(ctx context.Context, input overrides.CreateRecommendationInput) (*models.AIRecommendation, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.AIRecommendation{}, nil
}

func (s *testOverridesService) GetRecommendation(ctx context.Context, id uuid.UUID) (*overrides.RecommendationDetail, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &overrides.RecommendationDetail{}, nil
}

func (s *testOverridesService) ListRecommendations(ctx context.Context, filter overrides.RecommendationFilter, params pagination.Params) (pagination.Page[models.AIRecommendation], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter, params)
	}
	return pagination.Page[models.AIRecommendation]{}, nil
}

func (s *testOverridesService) Approve(ctx context.Context, input overrides.ApproveInput) (*models.OverrideDecision, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, input)
	}
	return &models.OverrideDecision{}, nil
}

func (s *testOverridesService) Override(ctx context.Context, input overrides.OverrideInput) (*models.OverrideDecision, error) {
	if s.overrideFn != nil {
		return s.overrideFn(ctx, input)
	}
	return &models.OverrideDecision{}, nil
}

func (s *testOverridesService) EditOverride(ctx context.Context, input overrides.OverrideInput) (*models.OverrideDecision, error) {
	if s.editFn != nil {
		return s.editFn(ctx, input)
	}
	return &models.OverrideDecision{}, nil
}

func (s *testOverridesService) SubmitFeedback(ctx context.Context, actorUserID, recommendationID uuid.UUID, input overrides.FeedbackInput) (*models.RecommendationFeedback, error) {
	if s.feedbackFn != nil {
		return s.feedbackFn(ctx, actorUserID, recommendationID, input)
	}
	return &models.RecommendationFeedback{}, nil
}

func (s *testOverridesService) FeedbackHistory(ctx context.Context, recommendationID uuid.UUID, params pagination.Params) (pagination.Page[models.RecommendationFeedback], error) {
	return pagination.Page[models.RecommendationFeedback]{}, nil
}

func (s *testOverridesService) GetSummary(ctx context.Context) (*overrides.Summary, error) {
	return &overrides.Summary{}, nil
}

func (s *testOverridesService) RecentDecisions(ctx context.Context, limit int) ([]models.OverrideDecision, error) {
	return []models.OverrideDecision{}, nil
}

func (s *testOverridesService) OverrideTaskStatus(ctx context.Context, input overrides.TaskStatusOverrideInput) (*models.OperationTask, error) {
	if s.taskOverrideFn != nil {
		return s.taskOverrideFn(ctx, input)
	}
	return &models.OperationTask{}, nil
}

func (s *testOverridesService) OverrideOrderStatus(ctx context.Context, input overrides.OrderStatusOverrideInput) (*models.Order, error) {
	if s.orderOverrideFn != nil {
		return s.orderOverrideFn(ctx, input)
	}
	return &models.Order{}, nil
}

func (s *testOverridesService) OverrideDeliveryStatus(ctx context.Context, input overrides.DeliveryStatusOverrideInput) (*models.Delivery, error) {
	if s.deliveryOverrideFn != nil {
		return s.deliveryOverrideFn(ctx, input)
	}
	return &models.Delivery{}, nil
}

func TestRecommendationCreateSuccess(t *testing.T) {
	var captured overrides.CreateRecommendationInput
	svc := &testOverridesService{
		createFn: func(ctx context.Context, input overrides.CreateRecommendationInput) (*models.AIRecommendation, error) {
			captured = input
			return &models.AIRecommendation{ID: uuid.New(), Type: input.Type, Payload: input.Payload}, nil
		},
	}

	body := `{"type":"PICK_ROUTE","payload":{"path_nodes":["` + uuid.NewString() + `","` + uuid.NewString() + `"],"total_distance_meters":"41.5"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	resp := httptest.NewRecorder()

	RecommendationCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Type != enums.RecommendationTypePickRoute {
		t.Fatalf("unexpected type %s", captured.Type)
	}
}

func TestRecommendationCreateRejectsUnknownType(t *testing.T) {
	body := `{"type":"TELEPORT","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	resp := httptest.NewRecorder()

	RecommendationCreate(&testOverridesService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRecommendationApproveForwardsFeedback(t *testing.T) {
	actorID := uuid.New()
	recID := uuid.New()
	var captured overrides.ApproveInput
	svc := &testOverridesService{
		approveFn: func(ctx context.Context, input overrides.ApproveInput) (*models.OverrideDecision, error) {
			captured = input
			return &models.OverrideDecision{ID: uuid.New(), RecommendationID: input.RecommendationID, Status: enums.OverrideStatusApprovedAsIs}, nil
		},
	}

	body := `{"feedback":{"reward":1,"comment":"solid route"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/"+recID.String()+"/approve", strings.NewReader(body))
	req = withActor(req, actorID)
	req = addRouteParam(req, "recommendationID", recID.String())
	resp := httptest.NewRecorder()

	RecommendationApprove(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ActorUserID != actorID || captured.RecommendationID != recID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.Feedback == nil || captured.Feedback.Reward != 1 {
		t.Fatal("expected feedback forwarded")
	}
}

func TestRecommendationApproveAlreadyDecided(t *testing.T) {
	recID := uuid.New()
	svc := &testOverridesService{
		approveFn: func(ctx context.Context, input overrides.ApproveInput) (*models.OverrideDecision, error) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyDecided, "recommendation already decided, use the edit operation")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/"+recID.String()+"/approve", strings.NewReader(`{}`))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "recommendationID", recID.String())
	resp := httptest.NewRecorder()

	RecommendationApprove(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeAlreadyDecided) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if !strings.Contains(envelope.Error.Message, "edit operation") {
		t.Fatalf("expected business message exposed, got %q", envelope.Error.Message)
	}
}

func TestRecommendationOverrideRequiresJustification(t *testing.T) {
	recID := uuid.New()
	body := `{"edited_payload":{"path_nodes":[]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/"+recID.String()+"/override", strings.NewReader(body))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "recommendationID", recID.String())
	resp := httptest.NewRecorder()

	RecommendationOverride(&testOverridesService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRecommendationOverrideEditUsesEditPath(t *testing.T) {
	recID := uuid.New()
	var edited bool
	svc := &testOverridesService{
		editFn: func(ctx context.Context, input overrides.OverrideInput) (*models.OverrideDecision, error) {
			edited = true
			return &models.OverrideDecision{ID: uuid.New(), Status: enums.OverrideStatusOverridden}, nil
		},
	}

	body := `{"edited_payload":{"path_nodes":["` + uuid.NewString() + `","` + uuid.NewString() + `"]},"justification":"shorter aisle order"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/recommendations/"+recID.String()+"/override", strings.NewReader(body))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "recommendationID", recID.String())
	resp := httptest.NewRecorder()

	RecommendationOverrideEdit(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !edited {
		t.Fatal("expected edit path used")
	}
}

func TestRecommendationFeedbackSubmits(t *testing.T) {
	actorID := uuid.New()
	recID := uuid.New()
	var captured overrides.FeedbackInput
	svc := &testOverridesService{
		feedbackFn: func(ctx context.Context, actorUserID, recommendationID uuid.UUID, input overrides.FeedbackInput) (*models.RecommendationFeedback, error) {
			if actorUserID != actorID || recommendationID != recID {
				t.Fatalf("unexpected ids %s %s", actorUserID, recommendationID)
			}
			captured = input
			return &models.RecommendationFeedback{ID: uuid.New(), Reward: input.Reward}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/"+recID.String()+"/feedback", strings.NewReader(`{"reward":-1}`))
	req = withActor(req, actorID)
	req = addRouteParam(req, "recommendationID", recID.String())
	resp := httptest.NewRecorder()

	RecommendationFeedback(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Reward != -1 {
		t.Fatalf("unexpected reward %d", captured.Reward)
	}
}

func TestTaskStatusOverrideParsesStatus(t *testing.T) {
	actorID := uuid.New()
	taskID := uuid.New()
	var captured overrides.TaskStatusOverrideInput
	svc := &testOverridesService{
		taskOverrideFn: func(ctx context.Context, input overrides.TaskStatusOverrideInput) (*models.OperationTask, error) {
			captured = input
			return &models.OperationTask{ID: input.TaskID, Status: input.Status}, nil
		},
	}

	body := `{"status":"BLOCKED","justification":"chariot battery died"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides/tasks/"+taskID.String()+"/status", strings.NewReader(body))
	req = withActor(req, actorID)
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskStatusOverride(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Status != enums.TaskStatusBlocked {
		t.Fatalf("unexpected status %s", captured.Status)
	}
	if captured.ActorUserID != actorID {
		t.Fatal("expected actor forwarded")
	}
}

func TestTaskStatusOverrideGuardsDoneTask(t *testing.T) {
	taskID := uuid.New()
	svc := &testOverridesService{
		taskOverrideFn: func(ctx context.Context, input overrides.TaskStatusOverrideInput) (*models.OperationTask, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a completed task cannot be overridden")
		},
	}

	body := `{"status":"IN_PROGRESS","justification":"reopen"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides/tasks/"+taskID.String()+"/status", strings.NewReader(body))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "taskID", taskID.String())
	resp := httptest.NewRecorder()

	TaskStatusOverride(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestDeliveryStatusOverrideParsesSequentialID(t *testing.T) {
	var captured overrides.DeliveryStatusOverrideInput
	svc := &testOverridesService{
		deliveryOverrideFn: func(ctx context.Context, input overrides.DeliveryStatusOverrideInput) (*models.Delivery, error) {
			captured = input
			return &models.Delivery{DeliveryID: input.DeliveryID, Status: input.Status}, nil
		},
	}

	body := `{"status":"IN_PROGRESS","justification":"truck left early"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overrides/deliveries/42/status", strings.NewReader(body))
	req = withActor(req, uuid.New())
	req = addRouteParam(req, "deliveryID", "42")
	resp := httptest.NewRecorder()

	DeliveryStatusOverride(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.DeliveryID != 42 {
		t.Fatalf("unexpected delivery id %d", captured.DeliveryID)
	}
	if captured.Status != enums.DeliveryStatusInProgress {
		t.Fatalf("unexpected status %s", captured.Status)
	}
}

func TestRecommendationsListParsesHasDecision(t *testing.T) {
	var captured overrides.RecommendationFilter
	svc := &testOverridesService{
		listFn: func(ctx context.Context, filter overrides.RecommendationFilter, p pagination.Params) (pagination.Page[models.AIRecommendation], error) {
			captured = filter
			return pagination.Page[models.AIRecommendation]{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?type=PICK_ROUTE&hasDecision=false", nil)
	resp := httptest.NewRecorder()
	RecommendationsList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.Type == nil || *captured.Type != enums.RecommendationTypePickRoute {
		t.Fatal("expected type filter")
	}
	if captured.HasDecision == nil || *captured.HasDecision {
		t.Fatal("expected hasDecision=false filter")
	}
}
