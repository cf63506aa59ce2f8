package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBootstrapReportsEveryEventKind(t *testing.T) {
	assert.Contains(t, bootstrapJS, "window."+bindingName+"(")
	for _, kind := range []EventKind{Inserted, Activated, Dismissed, Mutated} {
		assert.Contains(t, bootstrapJS, "kind: '"+string(kind)+"'")
	}
}
