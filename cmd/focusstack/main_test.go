package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"focus-stacker/internal/algorithms"
)

func TestFilterUsageListsRegisteredFilters(t *testing.T) {
	usage := filterUsage()
	for _, name := range algorithms.Names() {
		assert.Contains(t, usage, name)
	}
	assert.Contains(t, usage, "morphology")
}
