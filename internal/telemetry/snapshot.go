package telemetry

// Field names of the shared snapshot document.
const (
	FieldSpeed        = "speed_kmh"
	FieldOutsideTemp  = "outside_temp_c"
	FieldCabinTemp    = "cabin_temp_c"
	FieldBatteryLevel = "battery_level_percent"
)

// Fields lists the snapshot fields in record order.
var Fields = []string{FieldSpeed, FieldOutsideTemp, FieldCabinTemp, FieldBatteryLevel}

// Snapshot is one point-in-time telemetry reading.
type Snapshot struct {
	SpeedKmh            float64 `json:"speed_kmh"`
	OutsideTempC        float64 `json:"outside_temp_c"`
	CabinTempC          float64 `json:"cabin_temp_c"`
	BatteryLevelPercent float64 `json:"battery_level_percent"`
}

// Reading is a Snapshot plus the fields the producer left out, which were
// defaulted to zero.
type Reading struct {
	Snapshot Snapshot
	Missing  []string
}

func (s *Snapshot) field(name string) *float64 {
	switch name {
	case FieldSpeed:
		return &s.SpeedKmh
	case FieldOutsideTemp:
		return &s.OutsideTempC
	case FieldCabinTemp:
		return &s.CabinTempC
	case FieldBatteryLevel:
		return &s.BatteryLevelPercent
	}

	return nil
}
