// Package identity derives the synthetic device credentials the loyalty API
// expects during device registration.
//
// The formats are fixed by the remote validation:
//   - AndroidID: 16 lowercase hex characters
//   - UID: "and" followed by the AndroidID
//   - Username, Password: 32 lowercase hex characters
//   - APIKey: 40 lowercase hex characters
package identity

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
)

// Device is one forged identity. It is used for a single
// registration+redemption pair and never stored.
type Device struct {
	AndroidID string
	UID       string
	Username  string
	Password  string
	APIKey    string
	Model     string
	OSVersion string
}

var models = []string{
	"SM-G973F", "SM-A515F", "Pixel 4a", "Pixel 6", "Redmi Note 8 Pro",
	"ONEPLUS A6003", "moto g(8)", "CLT-L29", "M2007J20CG", "SM-G991B",
}

var osVersions = []string{"8.1.0", "9", "10", "11", "12", "13"}

// Forge is a pure function of seed: the same seed always yields the same Device.
func Forge(seed uint64) Device {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var raw [8]byte
	for i := range raw {
		raw[i] = byte(rng.IntN(256))
	}
	androidID := hex.EncodeToString(raw[:])
	uid := "and" + androidID

	return Device{
		AndroidID: androidID,
		UID:       uid,
		Username:  md5Hex("u" + androidID),
		Password:  md5Hex(androidID + "p"),
		APIKey:    sha1Hex(uid),
		Model:     models[rng.IntN(len(models))],
		OSVersion: osVersions[rng.IntN(len(osVersions))],
	}
}

// UserAgent renders the device as an okhttp-style agent string.
func (d Device) UserAgent() string {
	return fmt.Sprintf("Dalvik/2.1.0 (Linux; U; Android %s; %s)", d.OSVersion, d.Model)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
