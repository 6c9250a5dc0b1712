package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObservable(t *testing.T) {
	o := New(1)
	assert.Equal(t, 1, o.Get())

	var seen []int
	unsubscribe := o.Subscribe(func(v int) { seen = append(seen, v) })

	o.Set(2)
	got := o.Update(func(v int) int { return v * 10 })
	assert.Equal(t, 20, got)
	assert.Equal(t, []int{2, 20}, seen)

	unsubscribe()
	unsubscribe()
	o.Set(3)
	assert.Equal(t, []int{2, 20}, seen)
	assert.Equal(t, 3, o.Get())
}
