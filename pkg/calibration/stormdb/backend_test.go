package stormdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
)

func TestBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.db")
	b, err := Open(path)
	require.NoError(t, err)

	_, err = b.Load(1)
	require.ErrorIs(t, err, calibration.ErrNotFound)

	s := calibration.NewStore(b)
	_, err = s.Set(1, calibration.FieldStepsPerUnit, fixed.FromInt(120))
	require.NoError(t, err)
	_, err = s.Set(1, calibration.FieldBacklashOffset, fixed.MustParse("0.25"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = Open(path)
	require.NoError(t, err)
	defer b.Close()
	p := calibration.NewStore(b).Get(1)
	require.Equal(t, fixed.FromInt(120), p.StepsPerUnit)
	require.Equal(t, fixed.MustParse("0.25"), p.BacklashOffset)
	require.Equal(t, calibration.Defaults().MaxTravel, p.MaxTravel)
}
