package mpu6050

import (
	"fmt"
	"math"
	"time"
)

// Vec3 is a per-axis triple.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Sample is what the estimator publishes: the calibrated acceleration
// vector in g and the accelerometer tilt angles in degrees.
// Samples are compared with == to decide whether to publish.
type Sample struct {
	AccVec   Vec3 `json:"acc_vec"`
	AccAngle Vec3 `json:"acc_angle"`
}

func (s Sample) String() string {
	return fmt.Sprintf("v = ( %.1f , %.1f , %.1f )   ang = ( %.1f , %.1f , %.1f )",
		s.AccVec.X, s.AccVec.Y, s.AccVec.Z, s.AccAngle.X, s.AccAngle.Y, s.AccAngle.Z)
}

// Offsets are the biases added to every decoded reading.
// They are computed once by Init and never change afterwards.
type Offsets struct {
	Accel Vec3 `json:"accel"`
	Gyro  Vec3 `json:"gyro"`
}

// Attitude is diagnostic output. The complementary filter result is
// reported here only; it never reaches the published Sample.
type Attitude struct {
	Time         time.Time `json:"time"`
	TemperatureC float64   `json:"temp_c"`
	Gyro         Vec3      `json:"gyro"`
	GyroAngle    Vec3      `json:"gyro_angle"`
	Roll         float64   `json:"roll"`
	Pitch        float64   `json:"pitch"`
	Yaw          float64   `json:"yaw"`
	Sample       Sample    `json:"sample"`
}

// nudge is added to keep the angle denominators away from zero.
const nudge = 1e-8

// complementary filter weight of the integrated gyro angle
const gyroWeight = 0.96

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Fuse rounds the calibrated acceleration to one decimal, applies the
// denominator nudge and computes the tilt angle of each axis.
func Fuse(acc Vec3) Sample {
	acc = Vec3{round1(acc.X), round1(acc.Y), round1(acc.Z)}

	if acc.Z == 0 {
		acc.Z = nudge
	}
	if acc.X == acc.Z {
		acc.X += nudge
	}
	if acc.Y == acc.Z {
		acc.Y += nudge
	}

	angle := Vec3{
		X: round1(degrees(math.Atan(acc.Y / math.Sqrt(acc.X*acc.X+acc.Z*acc.Z)))),
		Y: round1(degrees(math.Atan(acc.X / math.Sqrt(acc.Y*acc.Y+acc.Z*acc.Z)))),
		Z: round1(degrees(math.Atan(math.Sqrt(acc.X*acc.X+acc.Y*acc.Y) / acc.Z))),
	}
	return Sample{AccVec: acc, AccAngle: angle}
}
