package engine

import "math/rand/v2"

// RandomSource supplies uniform floats in [0,1). It is only consulted for
// rollout decisions on requests that carry no device id.
type RandomSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DeviceHash is a 32-bit polynomial rolling hash (h = h*31 + c) over the
// runes of id. It is pure, so a device always lands in the same bucket.
func DeviceHash(id string) int32 {
	var h int32
	for _, c := range id {
		h = h*31 + int32(c)
	}
	return h
}

// Bucket maps a device id to a stable percentile in [1,100].
func Bucket(id string) int {
	h := int64(DeviceHash(id))
	if h < 0 {
		h = -h
	}
	return int(h%100) + 1
}

// Admits reports whether a rollout of pct percent includes the device.
func (e *Engine) Admits(pct int, deviceID string) bool {
	if pct >= 100 {
		return true
	}
	if deviceID != "" {
		return Bucket(deviceID) <= pct
	}
	return e.rand.Float64()*100 < float64(pct)
}
