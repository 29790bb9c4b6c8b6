package enums

import "fmt"

// OverrideStatus records how an admin resolved an AI recommendation.
type OverrideStatus string

const (
	OverrideStatusApprovedAsIs OverrideStatus = "APPROVED_AS_IS"
	OverrideStatusOverridden   OverrideStatus = "OVERRIDDEN"
)

var validOverrideStatuses = []OverrideStatus{
	OverrideStatusApprovedAsIs,
	OverrideStatusOverridden,
}

// String implements fmt.Stringer.
func (s OverrideStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OverrideStatus.
func (s OverrideStatus) IsValid() bool {
	for _, candidate := range validOverrideStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOverrideStatus converts raw input into an OverrideStatus.
func ParseOverrideStatus(value string) (OverrideStatus, error) {
	for _, candidate := range validOverrideStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid override status %q", value)
}
