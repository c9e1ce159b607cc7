package enums

import "fmt"

// MerchantCategory classifies the kind of food business a merchant runs.
type MerchantCategory string

const (
	MerchantCategoryBakery      MerchantCategory = "bakery"
	MerchantCategoryRestaurant  MerchantCategory = "restaurant"
	MerchantCategoryGrocery     MerchantCategory = "grocery"
	MerchantCategoryCafe        MerchantCategory = "cafe"
	MerchantCategoryGreengrocer MerchantCategory = "greengrocer"
	MerchantCategoryOther       MerchantCategory = "other"
)

var validMerchantCategories = []MerchantCategory{
	MerchantCategoryBakery,
	MerchantCategoryRestaurant,
	MerchantCategoryGrocery,
	MerchantCategoryCafe,
	MerchantCategoryGreengrocer,
	MerchantCategoryOther,
}

// String implements fmt.Stringer.
func (m MerchantCategory) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MerchantCategory.
func (m MerchantCategory) IsValid() bool {
	for _, candidate := range validMerchantCategories {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMerchantCategory converts raw input into a MerchantCategory.
func ParseMerchantCategory(value string) (MerchantCategory, error) {
	for _, candidate := range validMerchantCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merchant category %q", value)
}
