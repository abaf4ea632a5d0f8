package sh

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
)

func TestArgs(t *testing.T) {
	id, err := FeederArg([]string{"0x10"}, 0)
	require.NoError(t, err)
	require.Equal(t, uint8(16), id)
	_, err = FeederArg([]string{"256"}, 0)
	require.Error(t, err)
	_, err = FeederArg(nil, 0)
	require.Error(t, err)

	v, err := ValueArg([]string{"1", "2.5"}, 1, "DISTANCE")
	require.NoError(t, err)
	require.Equal(t, fixed.MustParse("2.5"), v)
	_, err = ValueArg([]string{"1", "x"}, 1, "DISTANCE")
	require.Error(t, err)
	_, err = ValueArg([]string{"1"}, 1, "DISTANCE")
	require.EqualError(t, err, "DISTANCE required")
}

func TestResponseJSON(t *testing.T) {
	p := calibration.Defaults()
	out, err := json.Marshal(NewResponseJSON(&protocol.Response{
		Op:      protocol.OpGetCalibration,
		Feeder:  2,
		Status:  protocol.Ack,
		State:   protocol.StateIdle,
		Profile: &p,
	}))
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	require.Equal(t, "0", m["position"])
	require.NotContains(t, m, "code")
	require.Equal(t, "4", m["calibration"].(map[string]interface{})["feed_pitch"])

	r := NewResponseJSON(&protocol.Response{
		Op:     protocol.OpAdvance,
		Status: protocol.Nack,
		Code:   protocol.CodeTimeout,
		State:  protocol.StateFault,
		Fault:  protocol.FaultStall,
	})
	require.Equal(t, protocol.CodeTimeout.String(), r.Code)
	require.Equal(t, protocol.FaultStall.String(), r.Fault)
}

func TestFormat(t *testing.T) {
	s := FormatResponse(&protocol.Response{Op: protocol.OpIdentify, Status: protocol.Ack, Version: "1.0.0"})
	require.Contains(t, s, "version=1.0.0")
	p := calibration.Defaults()
	s = FormatResponse(&protocol.Response{Op: protocol.OpGetCalibration, Status: protocol.Ack, Profile: &p})
	require.Contains(t, s, "max_travel")
	require.Equal(t, "c1 v1.0.0 feeders=[1 2]: bench", FormatMeta(mqtt.Meta{ID: "c1", Version: "1.0.0", Feeders: []int{1, 2}, Description: "bench"}))
}
