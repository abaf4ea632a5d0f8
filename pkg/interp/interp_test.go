package interp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

func TestValidate(t *testing.T) {
	h := protocol.Header{Feeder: 1}
	p := calibration.Defaults()
	cases := []struct {
		name string
		cmd  protocol.Command
		want Command
		kind *Kind
	}{
		{
			name: "advance",
			cmd:  protocol.Advance{Header: h, Distance: fixed.FromInt(5)},
			want: Command{Op: protocol.OpAdvance, Feeder: 1, Distance: fixed.FromInt(5)},
		},
		{
			name: "advance zero",
			cmd:  protocol.Advance{Header: h},
			want: Command{Op: protocol.OpAdvance, Feeder: 1},
		},
		{
			name: "advance max travel",
			cmd:  protocol.Advance{Header: h, Distance: p.MaxTravel},
			want: Command{Op: protocol.OpAdvance, Feeder: 1, Distance: p.MaxTravel},
		},
		{
			name: "advance too far",
			cmd:  protocol.Advance{Header: h, Distance: fixed.FromInt(9999)},
			kind: kindOf(OutOfRange),
		},
		{
			name: "retract negative",
			cmd:  protocol.Retract{Header: h, Distance: -1},
			kind: kindOf(OutOfRange),
		},
		{
			name: "feed uses pitch",
			cmd:  protocol.Feed{Header: h},
			want: Command{Op: protocol.OpAdvance, Feeder: 1, Distance: p.FeedPitch},
		},
		{
			name: "set steps per unit",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.FieldStepsPerUnit, Value: fixed.FromInt(120)},
			want: Command{Op: protocol.OpSetCalibration, Feeder: 1, Field: calibration.FieldStepsPerUnit, Value: fixed.FromInt(120)},
		},
		{
			name: "set steps per unit zero",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.FieldStepsPerUnit, Value: 0},
			kind: kindOf(OutOfRange),
		},
		{
			name: "set unknown field",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.Field(9), Value: 1},
			kind: kindOf(UnknownField),
		},
		{
			name: "feed pitch above max travel",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.FieldFeedPitch, Value: fixed.FromInt(51)},
			kind: kindOf(OutOfRange),
		},
		{
			name: "max travel below feed pitch",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.FieldMaxTravel, Value: fixed.FromInt(2)},
			kind: kindOf(OutOfRange),
		},
		{
			name: "fractional retry limit",
			cmd:  protocol.SetCalibration{Header: h, Field: calibration.FieldRetryLimit, Value: fixed.MustParse("1.5")},
			kind: kindOf(OutOfRange),
		},
		{
			name: "status",
			cmd:  protocol.GetStatus{Header: h},
			want: Command{Op: protocol.OpGetStatus, Feeder: 1},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			vc, err := Validate(c.cmd, p)
			if c.kind != nil {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				require.Equal(t, *c.kind, verr.Kind)
				require.NotEmpty(t, verr.Error())
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, vc)
		})
	}
}

func TestValidatePure(t *testing.T) {
	p := calibration.Defaults()
	cmd := protocol.Advance{Header: protocol.Header{Feeder: 1}, Distance: fixed.FromInt(9999)}
	_, err1 := Validate(cmd, p)
	_, err2 := Validate(cmd, p)
	require.Equal(t, err1, err2)
	require.Equal(t, calibration.Defaults(), p)
}

func TestValidationCode(t *testing.T) {
	require.Equal(t, protocol.CodeOutOfRange, (&ValidationError{Kind: OutOfRange}).Code())
	require.Equal(t, protocol.CodeInvalidCommand, (&ValidationError{Kind: UnknownField}).Code())
}

func kindOf(k Kind) *Kind {
	return &k
}
