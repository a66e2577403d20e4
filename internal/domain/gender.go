package domain

import "strings"

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderBoys   = "boys"
	GenderGirls  = "girls"
	GenderUnisex = "unisex"
)

// NormalizeGender maps form labels and aliases onto the backend enum.
func NormalizeGender(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "men":
		return GenderMale
	case "female", "women":
		return GenderFemale
	case "boys":
		return GenderBoys
	case "girls":
		return GenderGirls
	default:
		return GenderUnisex
	}
}

func GenderLabel(gender string) string {
	switch NormalizeGender(gender) {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	case GenderBoys:
		return "Boys"
	case GenderGirls:
		return "Girls"
	default:
		return "Unisex"
	}
}

// IsKids reports whether the target group is one of the children's groups.
func IsKids(gender string) bool {
	g := NormalizeGender(gender)
	return g == GenderBoys || g == GenderGirls
}
