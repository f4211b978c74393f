package trafficgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSyntheticIfaceNameIsUniqueAndPrefixed(t *testing.T) {
	a := newSyntheticIfaceName()
	b := newSyntheticIfaceName()

	assert.True(t, strings.HasPrefix(a, "veth"))
	assert.True(t, strings.HasPrefix(b, "veth"))
	assert.NotEqual(t, a, b)
}
