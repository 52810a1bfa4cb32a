package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteBanner(t *testing.T) {
	var buf bytes.Buffer
	WriteBanner(&buf, "hc", "1.2.3", "ColorGreen")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ColorGreen))
	assert.Contains(t, out, "version 1.2.3")
	assert.Greater(t, strings.Count(out, "\n"), 1)
}

func TestColorCode_Unknown(t *testing.T) {
	assert.Equal(t, ColorReset, colorCode("ColorPurple"))
	assert.Equal(t, ColorBlue, colorCode("ColorBlue"))
}
