// Package unit provisions the compute units that own one partition each.
//
// A unit is an engine process (a container with the Docker backend) with a
// dedicated volume. Its name, volume and host name all derive from the
// fingerprint of the partition-key value, so every gateway computes the same
// unit for the same key without shared state.
package unit

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Fingerprint returns the non-negative fingerprint of a partition-key value:
// the first four bytes of its SHA-256 digest read as a little-endian int32
// with the sign bit cleared.
func Fingerprint(key string) int32 {
	sum := sha256.Sum256([]byte(key))
	return int32(binary.LittleEndian.Uint32(sum[:4]) & 0x7FFFFFFF)
}

// Unit identifies the compute unit of one partition.
type Unit struct {
	Fingerprint int32
	Name        string // container name and host name on the unit network
	Volume      string
	Port        int
}

// Address returns the base URL at which the unit serves.
func (u Unit) Address() string {
	return fmt.Sprintf("http://%s:%d", u.Name, u.Port)
}

// Naming derives unit names from fingerprints.
type Naming struct {
	Prefix string
	Port   int
}

// Unit returns the unit for a partition-key value.
func (n Naming) Unit(key string) Unit {
	fp := Fingerprint(key)
	name := fmt.Sprintf("%s_%d", n.Prefix, fp)
	return Unit{
		Fingerprint: fp,
		Name:        name,
		Volume:      name + "_data",
		Port:        n.Port,
	}
}
