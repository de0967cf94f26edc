//go:build !integration

package store

import (
	"testing"

	"go.uber.org/goleak"
)

// testcontainers оставляет свои горутины, поэтому только без integration
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
