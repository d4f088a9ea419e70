package advice_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/advisor"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadEncoding(t *testing.T) {
	p := advice.NewPayload(telemetry.Snapshot{
		SpeedKmh:            60,
		OutsideTempC:        10,
		CabinTempC:          35,
		BatteryLevelPercent: 15,
	})

	data, err := p.Encode()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 60.0, doc["speed_kmh"])
	assert.Equal(t, 10.0, doc["outside_temp_c"])
	assert.Equal(t, 35.0, doc["cabin_temp_c"])
	assert.Equal(t, 15.0, doc["battery_level_percent"])
	assert.Equal(t, 3.0, doc["label"])
	assert.Equal(t, []any{advisor.MsgCabinHot, advisor.MsgBatteryLow}, doc["advices"])
	assert.Len(t, doc, 6)
}

func TestPublishOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "advice.json")

	pub, err := advice.NewPublisher(advice.Config{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, advice.NewPayload(telemetry.Snapshot{SpeedKmh: 130, CabinTempC: 22, BatteryLevelPercent: 50})))
	require.NoError(t, pub.Publish(ctx, advice.NewPayload(telemetry.Snapshot{SpeedKmh: 60, CabinTempC: 22, BatteryLevelPercent: 80})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got advice.Payload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, advisor.Normal, got.Label)
	assert.Equal(t, []string{advisor.MsgNormal}, got.Advices)
	assert.Equal(t, 60.0, got.SpeedKmh)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "advice.json", entries[0].Name())
}

func TestPublishFailureKeepsPreviousPayload(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "advice.json")

	pub, err := advice.NewPublisher(advice.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), advice.NewPayload(telemetry.Snapshot{SpeedKmh: 130})))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err = pub.Publish(context.Background(), advice.NewPayload(telemetry.Snapshot{SpeedKmh: 60}))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrWrite))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPublishCancelled(t *testing.T) {
	pub, err := advice.NewPublisher(advice.Config{Path: filepath.Join(t.TempDir(), "advice.json")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pub.Publish(ctx, advice.NewPayload(telemetry.Snapshot{}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, advice.ErrPublishFailed))
}

func TestNewPublisherRequiresPath(t *testing.T) {
	_, err := advice.NewPublisher(advice.Config{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrConfig))
}
