package audit

// Action types recorded by the operational flows.
const (
	ActionTaskAssigned           = "TASK_ASSIGNED"
	ActionTaskAssignmentNote     = "TASK_ASSIGNMENT_JUSTIFIED"
	ActionTaskStatusChanged      = "TASK_STATUS_CHANGED"
	ActionTaskAutoTransition     = "STATUS_AUTO_TRANSITION"
	ActionTaskValidated          = "TASK_VALIDATED"
	ActionTaskOverride           = "TASK_OVERRIDE"
	ActionOrderOverride          = "ORDER_OVERRIDE"
	ActionDeliveryOverride       = "DELIVERY_OVERRIDE"
	ActionRecommendationApproved = "RECOMMENDATION_APPROVED"
	ActionRecommendationOverride = "RECOMMENDATION_OVERRIDDEN"
	ActionOverrideEdited         = "OVERRIDE_EDITED"
	ActionFeedbackSubmitted      = "FEEDBACK_SUBMITTED"
	ActionStockMovementApplied   = "STOCK_MOVEMENT_APPLIED"
	ActionRoutePlanMaterialized  = "ROUTE_PLAN_MATERIALIZED"
)

// Entity types referenced by audit entries.
const (
	EntityTask           = "operation_task"
	EntityOrder          = "order"
	EntityDelivery       = "delivery"
	EntityRecommendation = "ai_recommendation"
	EntityLedgerEntry    = "ledger_entry"
	EntityRoutePlan      = "route_plan"
)
