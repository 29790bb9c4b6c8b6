package enums

import "fmt"

// TaskStatus tracks an operational task through its lifecycle.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

var validTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusAssigned,
	TaskStatusInProgress,
	TaskStatusDone,
	TaskStatusBlocked,
	TaskStatusCancelled,
}

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TaskStatus.
func (s TaskStatus) IsValid() bool {
	for _, candidate := range validTaskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// ParseTaskStatus converts raw input into a TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, error) {
	for _, candidate := range validTaskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task status %q", value)
}
