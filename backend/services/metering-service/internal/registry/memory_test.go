package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"submeter/backend/services/metering-service/internal/meter"
)

type nopNotifier struct{}

func (nopNotifier) Log(string)     {}
func (nopNotifier) Warning(string) {}

func TestMemoryRegistry(t *testing.T) {
	r := NewMemoryRegistry()
	m := meter.New("A-1", nopNotifier{}, meter.Config{})

	_, ok := r.Get("A-1")
	assert.False(t, ok)

	r.Put("A-1", m)
	got, ok := r.Get("A-1")
	assert.True(t, ok)
	assert.Same(t, m, got)
	assert.Len(t, r.All(), 1)

	assert.True(t, r.Remove("A-1"))
	assert.False(t, r.Remove("A-1"))
	assert.Empty(t, r.All())
}
