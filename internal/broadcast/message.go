package broadcast

import (
	"encoding/json"

	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/telemetry"
)

// recordMessage is the JSON form of a dataset record on the wire.
type recordMessage struct {
	Timestamp string `json:"timestamp"`
	telemetry.Snapshot
	Label     int    `json:"label"`
	LabelName string `json:"label_name"`
}

func encodeRecord(rec dataset.Record) ([]byte, error) {
	row := rec.Row()

	return json.Marshal(recordMessage{
		Timestamp: row[0],
		Snapshot:  rec.Snapshot,
		Label:     int(rec.Label),
		LabelName: rec.Label.String(),
	})
}
