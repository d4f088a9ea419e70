package advisor

import "fmt"

// Label is the single highest-priority advisory category of a snapshot.
// The integer values are the dataset encoding and must not change.
type Label int

const (
	Normal     Label = 0
	ComfortTip Label = 1
	SafetyTip  Label = 2
	EnergyTip  Label = 3
)

func (l Label) String() string {
	switch l {
	case Normal:
		return "normal"
	case ComfortTip:
		return "comfort_tip"
	case SafetyTip:
		return "safety_tip"
	case EnergyTip:
		return "energy_tip"
	default:
		return fmt.Sprintf("label(%d)", int(l))
	}
}

// Labels lists every label in encoding order.
var Labels = []Label{Normal, ComfortTip, SafetyTip, EnergyTip}
