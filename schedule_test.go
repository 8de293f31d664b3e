package deferredshading

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackRegistry_PriorityOrderWithStableTies(t *testing.T) {
	r := NewCallbackRegistry()
	var got []string
	add := func(name string, prio int) {
		r.Use(Callback(name, func() { got = append(got, name) }).InStage(StagePostLighting).WithPriority(prio))
	}
	add("A", 10)
	add("B", 5)
	add("C", 10)

	r.Run(StagePostLighting, nil)
	assert.Equal(t, []string{"B", "A", "C"}, got)
}

func TestCallbackRegistry_DefaultPriority(t *testing.T) {
	r := NewCallbackRegistry()
	var got []string
	r.Use(Callback("late", func() { got = append(got, "late") }).InStage(StageHUD).WithPriority(2000))
	r.Use(Callback("default", func() { got = append(got, "default") }).InStage(StageHUD))
	r.Use(Callback("early", func() { got = append(got, "early") }).InStage(StageHUD).WithPriority(-1))

	r.Run(StageHUD, nil)
	assert.Equal(t, []string{"early", "default", "late"}, got)
	assert.Equal(t, DefaultPriority, r.Callbacks(StageHUD)[1].Priority)
}

func TestCallbackRegistry_AfterRunsPerCallback(t *testing.T) {
	r := NewCallbackRegistry()
	var trace []string
	for i := 0; i < 3; i++ {
		name := fmt.Sprint(i)
		r.Use(Callback(name, func() { trace = append(trace, name) }).InStage(StagePostGBuffer))
	}

	r.Run(StagePostGBuffer, func() { trace = append(trace, "rebind") })
	assert.Equal(t, []string{"0", "rebind", "1", "rebind", "2", "rebind"}, trace)
}

func TestCallbackRegistry_StagesAreIndependent(t *testing.T) {
	r := NewCallbackRegistry()
	ran := 0
	r.Use(Callback("x", func() { ran++ }).InStage(StageTransparent))

	for _, s := range Stages() {
		if s != StageTransparent {
			r.Run(s, nil)
		}
	}
	assert.Zero(t, ran)
	assert.Equal(t, 1, r.Len(StageTransparent))
	assert.Equal(t, "Transparent", StageTransparent.String())
}

func TestCallbackRegistry_RejectsBadRegistration(t *testing.T) {
	r := NewCallbackRegistry()
	require.PanicsWithValue(t, "Stage Stage(42) doesn't exist", func() {
		r.Use(Callback("bad", func() {}).InStage(Stage(42)))
	})
	require.Panics(t, func() {
		r.Use(Callback("nil", nil))
	})
}
