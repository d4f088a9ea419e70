package advisor

import "codeberg.org/mutker/driveassist/internal/telemetry"

const (
	SpeedLimitKmh     = 120.0
	BatteryLowPercent = 20.0
	CabinHotCelsius   = 30.0
	CabinColdCelsius  = 18.0
)

const (
	MsgCabinHot   = "Cabin is hot. Suggest lowering AC temperature."
	MsgCabinCold  = "Cabin is cold. Suggest increasing AC temperature."
	MsgSpeedHigh  = "Speed is high. Consider slowing down for safety."
	MsgBatteryLow = "Battery is low. Suggest enabling eco mode and reducing acceleration."
	MsgNormal     = "Conditions are normal. No specific advice."
)

func speedHigh(s telemetry.Snapshot) bool  { return s.SpeedKmh > SpeedLimitKmh }
func batteryLow(s telemetry.Snapshot) bool { return s.BatteryLevelPercent < BatteryLowPercent }
func cabinHot(s telemetry.Snapshot) bool   { return s.CabinTempC > CabinHotCelsius }
func cabinCold(s telemetry.Snapshot) bool  { return s.CabinTempC < CabinColdCelsius }

func cabinUncomfortable(s telemetry.Snapshot) bool {
	return cabinHot(s) || cabinCold(s)
}

type labelRule struct {
	Label Label
	Match func(telemetry.Snapshot) bool
}

// labelRules is evaluated top to bottom, first match wins.
var labelRules = []labelRule{
	{Label: SafetyTip, Match: speedHigh},
	{Label: EnergyTip, Match: batteryLow},
	{Label: ComfortTip, Match: cabinUncomfortable},
}

type messageRule struct {
	Message string
	Match   func(telemetry.Snapshot) bool
}

// messageRules are all evaluated. Hot and cold cannot both hold.
var messageRules = []messageRule{
	{Message: MsgCabinHot, Match: cabinHot},
	{Message: MsgCabinCold, Match: cabinCold},
	{Message: MsgSpeedHigh, Match: speedHigh},
	{Message: MsgBatteryLow, Match: batteryLow},
}

// Classify returns the label of s and one advisory message per triggered
// condition. The message list is never empty.
func Classify(s telemetry.Snapshot) (Label, []string) {
	return ClassifyLabel(s), Messages(s)
}

// ClassifyLabel returns the highest-priority label for s.
func ClassifyLabel(s telemetry.Snapshot) Label {
	for _, r := range labelRules {
		if r.Match(s) {
			return r.Label
		}
	}

	return Normal
}

// Messages returns the advisory messages for s, independent of its label.
func Messages(s telemetry.Snapshot) []string {
	var msgs []string
	for _, r := range messageRules {
		if r.Match(s) {
			msgs = append(msgs, r.Message)
		}
	}

	if len(msgs) == 0 {
		msgs = append(msgs, MsgNormal)
	}

	return msgs
}
