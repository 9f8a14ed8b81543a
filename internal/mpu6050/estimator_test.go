package mpu6050

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tilt_matrix/internal/sched"
	"github.com/relabs-tech/tilt_matrix/internal/sim"
)

func TestDecode(t *testing.T) {
	pairs := [][2]byte{{0x00, 0x00}, {0x40, 0x00}, {0x7F, 0xFF}, {0x80, 0x00}, {0xFF, 0xFF}, {0xC0, 0x01}, {0x01, 0x83}}
	for _, p := range pairs {
		raw := float64(int16(uint16(p[0])<<8 | uint16(p[1])))
		buf := []byte{p[0], p[1], p[0], p[1], p[0], p[1]}

		acc := DecodeAccel(buf)
		assert.Equal(t, Vec3{raw / 16384, raw / 16384, raw / 16384}, acc)

		gyro := DecodeGyro(buf)
		assert.Equal(t, Vec3{raw / 131, raw / 131, raw / 131}, gyro)
	}
	assert.Equal(t, -1.0, DecodeAccel([]byte{0xC0, 0x00, 0, 0, 0, 0}).X)
	assert.InDelta(t, 36.53, DecodeTemperature([]byte{0, 0}), 1e-9)
}

func TestFuseLevel(t *testing.T) {
	s := Fuse(Vec3{X: 0.02, Y: -0.03, Z: 1.01})
	assert.Equal(t, Vec3{X: 0, Y: 0, Z: 1}, s.AccVec)
	assert.Equal(t, 0.0, s.AccAngle.X)
	assert.Equal(t, 0.0, s.AccAngle.Y)
	assert.Equal(t, 0.0, s.AccAngle.Z)
}

func TestFuseAngles(t *testing.T) {
	s := Fuse(Vec3{X: 0, Y: 0.5, Z: 0.866})
	assert.Equal(t, 0.9, s.AccVec.Z)
	assert.InDelta(t, 29.1, s.AccAngle.X, 1e-9)
	assert.InDelta(t, 0.0, s.AccAngle.Y, 1e-9)
	assert.InDelta(t, 29.1, s.AccAngle.Z, 1e-9)
}

func TestFuseNudgesDegenerateDenominators(t *testing.T) {
	s := Fuse(Vec3{})
	assert.Equal(t, 1e-8, s.AccVec.Z)
	assert.False(t, math.IsNaN(s.AccAngle.X))
	assert.False(t, math.IsNaN(s.AccAngle.Y))
	assert.False(t, math.IsNaN(s.AccAngle.Z))

	s = Fuse(Vec3{X: 0.5, Y: 0.5, Z: 0.5})
	assert.Equal(t, 0.5+1e-8, s.AccVec.X)
	assert.Equal(t, 0.5+1e-8, s.AccVec.Y)
	assert.Equal(t, 0.5, s.AccVec.Z)
}

func newEstimator(t *testing.T, imu *sim.IMU) (*Estimator, *sched.ManualClock) {
	t.Helper()
	clock := sched.NewManualClock(time.Unix(0, 0))
	opts := DefaultOptions()
	opts.Clock = clock
	return New(imu, opts), clock
}

func TestInitCalibrates(t *testing.T) {
	imu := sim.NewIMU(DefaultAddress)
	imu.SetRaw([3]int16{164, -164, 16056}, [3]int16{131, -262, 0})
	e, clock := newEstimator(t, imu)

	require.NoError(t, e.Init(context.Background()))
	assert.Equal(t, 1, imu.Resets())
	assert.Equal(t, 200, imu.Reads(regAccelXoutH))
	assert.Equal(t, 200, imu.Reads(regGyroXoutH))
	assert.Equal(t, 2*time.Second, clock.Now().Sub(time.Unix(0, 0)))

	off := e.Offsets()
	assert.InDelta(t, -164.0/16384, off.Accel.X, 1e-12)
	assert.InDelta(t, 164.0/16384, off.Accel.Y, 1e-12)
	assert.InDelta(t, 1-16056.0/16384, off.Accel.Z, 1e-12)
	assert.InDelta(t, -1, off.Gyro.X, 1e-12)
	assert.InDelta(t, 2, off.Gyro.Y, 1e-12)
	assert.InDelta(t, 0, off.Gyro.Z, 1e-12)

	// Calibrated readings of the same fixture are level and still.
	s, changed, err := e.Step()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Vec3{X: 0, Y: 0, Z: 1}, s.AccVec)
	assert.InDelta(t, 0, e.Attitude().Gyro.X, 1e-12)
}

func TestInitCalibrationFailure(t *testing.T) {
	boom := errors.New("nack")
	imu := sim.NewIMU(DefaultAddress)
	imu.FailAfter(50, boom)
	e, _ := newEstimator(t, imu)

	err := e.Init(context.Background())
	var ce *CalibrationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "accelerometer", ce.Phase)
	assert.Equal(t, 49, ce.Sample)
	assert.ErrorIs(t, err, boom)
}

func TestInitResetFailure(t *testing.T) {
	boom := errors.New("nack")
	imu := sim.NewIMU(DefaultAddress)
	imu.FailAfter(0, boom)
	e, _ := newEstimator(t, imu)

	err := e.Init(context.Background())
	assert.ErrorIs(t, err, boom)
	var ce *CalibrationError
	assert.False(t, errors.As(err, &ce))
}

func TestStepPublishesOnlyChanges(t *testing.T) {
	imu := sim.NewIMU(DefaultAddress)
	e, _ := newEstimator(t, imu)
	require.NoError(t, e.Init(context.Background()))

	var published []Sample
	tilts := []float64{0, 0, 0, 30, 30, 30, -10, -10, 0}
	for _, a := range tilts {
		imu.SetTilt(a, 0)
		s, changed, err := e.Step()
		require.NoError(t, err)
		if changed {
			published = append(published, s)
		}
	}
	require.Len(t, published, 4)
	for i := 1; i < len(published); i++ {
		assert.NotEqual(t, published[i-1], published[i])
	}
	// 0.5g over 0.9g and -0.2g over 1.0g after rounding
	assert.InDelta(t, 29.1, published[1].AccAngle.X, 1e-9)
	assert.InDelta(t, -11.3, published[2].AccAngle.X, 1e-9)
}

func TestRunPublishesAndReports(t *testing.T) {
	imu := sim.NewIMU(DefaultAddress)
	clock := sched.NewManualClock(time.Unix(0, 0))
	reports := make(chan Attitude, 64)
	opts := DefaultOptions()
	opts.Clock = clock
	opts.OnAttitude = func(a Attitude) {
		select {
		case reports <- a:
		default:
		}
	}
	e := New(imu, opts)
	require.NoError(t, e.Init(context.Background()))

	out := sched.NewQueue[Sample]("samples")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, out) }()

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()

	first, err := out.Recv(rctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.AccAngle.X)

	imu.SetTilt(40, 0)
	second, err := out.Recv(rctx)
	require.NoError(t, err)
	assert.InDelta(t, 36.9, second.AccAngle.X, 1e-9)

	select {
	case a := <-reports:
		assert.InDelta(t, 35, a.TemperatureC, 0.5)
	case <-rctx.Done():
		t.Fatal("no attitude report")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunStopsOnTransportError(t *testing.T) {
	boom := errors.New("bus stuck")
	imu := sim.NewIMU(DefaultAddress)
	e, _ := newEstimator(t, imu)
	require.NoError(t, e.Init(context.Background()))

	imu.FailAfter(10, boom)
	err := e.Run(context.Background(), sched.NewQueue[Sample]("samples"))
	assert.ErrorIs(t, err, boom)
}

func TestDumpRegisters(t *testing.T) {
	imu := sim.NewIMU(DefaultAddress)
	regs, err := DumpRegisters(imu, DefaultAddress)
	require.NoError(t, err)
	require.Len(t, regs, len(RegisterMap()))
	for _, r := range regs {
		if r.Name == "WHO_AM_I" {
			assert.Equal(t, []byte{0x68}, r.Value)
		}
		if r.Name == "ACCEL_OUT" {
			assert.Equal(t, []byte{0, 0, 0, 0, 0x40, 0x00}, r.Value)
		}
	}
}
