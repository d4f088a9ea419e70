package advice

import (
	"encoding/json"

	"codeberg.org/mutker/driveassist/internal/advisor"
	"codeberg.org/mutker/driveassist/internal/telemetry"
)

// Payload is the latest snapshot with its advisory messages and label.
type Payload struct {
	telemetry.Snapshot
	Advices []string      `json:"advices"`
	Label   advisor.Label `json:"label"`
}

func NewPayload(s telemetry.Snapshot) Payload {
	label, advices := advisor.Classify(s)

	return Payload{
		Snapshot: s,
		Advices:  advices,
		Label:    label,
	}
}

// Encode renders p the way it is stored on disk.
func (p Payload) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}
