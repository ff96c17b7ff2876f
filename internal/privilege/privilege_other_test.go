//go:build !windows

package privilege

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElevatedMatchesEffectiveUID(t *testing.T) {
	assert.Equal(t, os.Geteuid() == 0, Elevated())
}
