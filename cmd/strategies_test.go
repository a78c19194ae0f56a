package cmd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mselser95/polymarket-sim/internal/strategy"
)

func TestListStrategies(t *testing.T) {
	var buf bytes.Buffer
	listStrategies(&buf)
	out := buf.String()

	assert.Contains(t, out, fmt.Sprintf("Registered strategies (%d)", len(strategy.Names())))
	for _, name := range []string{strategy.NameNoop, strategy.NameTakeBest, strategy.NameArbWatch} {
		assert.Contains(t, out, name)
	}
}
