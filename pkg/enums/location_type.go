package enums

import "fmt"

// LocationType classifies a physical warehouse location.
type LocationType string

const (
	LocationTypePicking    LocationType = "PICKING"
	LocationTypeStorage    LocationType = "STORAGE"
	LocationTypeExpedition LocationType = "EXPEDITION"
	LocationTypeReception  LocationType = "RECEPTION"
	LocationTypeOther      LocationType = "OTHER"
)

var validLocationTypes = []LocationType{
	LocationTypePicking,
	LocationTypeStorage,
	LocationTypeExpedition,
	LocationTypeReception,
	LocationTypeOther,
}

// String implements fmt.Stringer.
func (l LocationType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LocationType.
func (l LocationType) IsValid() bool {
	for _, candidate := range validLocationTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLocationType converts raw input into a LocationType.
func ParseLocationType(value string) (LocationType, error) {
	for _, candidate := range validLocationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid location type %q", value)
}
