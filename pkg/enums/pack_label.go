package enums

import "fmt"

// PackLabel is the loose contents category shown to buyers.
type PackLabel string

const (
	PackLabelMeals    PackLabel = "meals"
	PackLabelBread    PackLabel = "bread"
	PackLabelProduce  PackLabel = "produce"
	PackLabelPastry   PackLabel = "pastry"
	PackLabelSurprise PackLabel = "surprise"
)

var validPackLabels = []PackLabel{
	PackLabelMeals,
	PackLabelBread,
	PackLabelProduce,
	PackLabelPastry,
	PackLabelSurprise,
}

// String implements fmt.Stringer.
func (p PackLabel) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PackLabel.
func (p PackLabel) IsValid() bool {
	for _, candidate := range validPackLabels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePackLabel converts raw input into a PackLabel.
func ParsePackLabel(value string) (PackLabel, error) {
	for _, candidate := range validPackLabels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pack label %q", value)
}
