package enums

import "fmt"

// RecommendationType identifies what kind of decision the AI proposed.
type RecommendationType string

const (
	RecommendationTypeForecast          RecommendationType = "FORECAST"
	RecommendationTypeStorageAssignment RecommendationType = "STORAGE_ASSIGNMENT"
	RecommendationTypePickRoute         RecommendationType = "PICK_ROUTE"
)

var validRecommendationTypes = []RecommendationType{
	RecommendationTypeForecast,
	RecommendationTypeStorageAssignment,
	RecommendationTypePickRoute,
}

// String implements fmt.Stringer.
func (r RecommendationType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecommendationType.
func (r RecommendationType) IsValid() bool {
	for _, candidate := range validRecommendationTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecommendationType converts raw input into a RecommendationType.
func ParseRecommendationType(value string) (RecommendationType, error) {
	for _, candidate := range validRecommendationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recommendation type %q", value)
}
