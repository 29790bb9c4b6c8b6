package enums

import "fmt"

// DeliveryStatus tracks a delivery run.
type DeliveryStatus string

const (
	DeliveryStatusIdle       DeliveryStatus = "IDLE"
	DeliveryStatusInProgress DeliveryStatus = "IN_PROGRESS"
	DeliveryStatusDone       DeliveryStatus = "DONE"
	DeliveryStatusFailed     DeliveryStatus = "FAILED"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusIdle,
	DeliveryStatusInProgress,
	DeliveryStatusDone,
	DeliveryStatusFailed,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
