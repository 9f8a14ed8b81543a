// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu6050

import (
	"fmt"

	"github.com/relabs-tech/tilt_matrix/internal/transport"
)

// DefaultAddress is the sensor address with AD0 tied low.
const DefaultAddress = 0x68

const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXoutH  = 0x3B
	regTempOutH    = 0x41
	regGyroXoutH   = 0x43
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75
)

// Sensitivity divisors for the power-on ranges.
const (
	accelLSBPerG   = 16384.0 // ±2g
	gyroLSBPerDegS = 131.0   // ±250°/s
	tempLSBPerDegC = 340.0
	tempOffsetC    = 36.53
)

// RegisterInfo describes one register block for the debug dump.
type RegisterInfo struct {
	Address     byte   `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Length      int    `json:"length"`
}

// RegisterMap lists the registers this driver touches.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: regSmplrtDiv, Name: "SMPLRT_DIV", Description: "Sample Rate Divider", Length: 1},
		{Address: regConfig, Name: "CONFIG", Description: "Configuration (DLPF)", Length: 1},
		{Address: regGyroConfig, Name: "GYRO_CONFIG", Description: "Gyroscope full scale (0=±250°/s)", Length: 1},
		{Address: regAccelConfig, Name: "ACCEL_CONFIG", Description: "Accelerometer full scale (0=±2g)", Length: 1},
		{Address: regAccelXoutH, Name: "ACCEL_OUT", Description: "Accelerometer X/Y/Z, big-endian int16", Length: 6},
		{Address: regTempOutH, Name: "TEMP_OUT", Description: "Temperature, big-endian int16", Length: 2},
		{Address: regGyroXoutH, Name: "GYRO_OUT", Description: "Gyroscope X/Y/Z, big-endian int16", Length: 6},
		{Address: regPwrMgmt1, Name: "PWR_MGMT_1", Description: "Power management 1 (0x00 wakes the device)", Length: 1},
		{Address: regWhoAmI, Name: "WHO_AM_I", Description: "Device identity (0x68)", Length: 1},
	}
}

// RegisterValue is one register block read back from the device.
type RegisterValue struct {
	RegisterInfo
	Value []byte `json:"value"`
}

// DumpRegisters reads every block of RegisterMap.
func DumpRegisters(bus transport.I2C, addr uint16) ([]RegisterValue, error) {
	regs := RegisterMap()
	out := make([]RegisterValue, 0, len(regs))
	for _, reg := range regs {
		buf := make([]byte, reg.Length)
		if err := bus.WriteRead(addr, []byte{reg.Address}, buf); err != nil {
			return out, fmt.Errorf("mpu6050: read %s: %w", reg.Name, err)
		}
		out = append(out, RegisterValue{RegisterInfo: reg, Value: buf})
	}
	return out, nil
}

// decodeInt16 sign-extends a big-endian register pair.
func decodeInt16(hi, lo byte) int16 {
	return int16(uint16(hi)<<8 | uint16(lo))
}

// DecodeAccel converts a 6-byte accelerometer burst to g.
func DecodeAccel(buf []byte) Vec3 {
	return decodeVec(buf, accelLSBPerG)
}

// DecodeGyro converts a 6-byte gyroscope burst to °/s.
func DecodeGyro(buf []byte) Vec3 {
	return decodeVec(buf, gyroLSBPerDegS)
}

// DecodeTemperature converts a 2-byte temperature burst to °C.
func DecodeTemperature(buf []byte) float64 {
	return float64(decodeInt16(buf[0], buf[1]))/tempLSBPerDegC + tempOffsetC
}

func decodeVec(buf []byte, div float64) Vec3 {
	return Vec3{
		X: float64(decodeInt16(buf[0], buf[1])) / div,
		Y: float64(decodeInt16(buf[2], buf[3])) / div,
		Z: float64(decodeInt16(buf[4], buf[5])) / div,
	}
}
