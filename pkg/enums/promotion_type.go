package enums

import (
	"fmt"
	"strings"
)

// PromotionType selects how a promotion's value is applied to a subtotal.
type PromotionType string

const (
	PromotionTypePercent PromotionType = "PERCENT"
	PromotionTypeFixed   PromotionType = "FIXED"
)

// String implements fmt.Stringer.
func (p PromotionType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PromotionType.
func (p PromotionType) IsValid() bool {
	return p == PromotionTypePercent || p == PromotionTypeFixed
}

// ParsePromotionType converts raw input (case-insensitive) into a PromotionType.
func ParsePromotionType(value string) (PromotionType, error) {
	candidate := PromotionType(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid promotion type %q", value)
}
