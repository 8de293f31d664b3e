package deferredshading

import (
	"cmp"
	"fmt"
	"slices"
)

// Stage is a fixed extension point in the deferred frame.
type Stage int

const (
	StagePreGBuffer Stage = iota
	StagePostGBuffer
	StagePreLighting
	StagePostLighting
	StageTransparent
	StagePostEffect
	StageHUD
	stageCount
)

var stageNames = [stageCount]string{
	"PreGBuffer", "PostGBuffer", "PreLighting", "PostLighting", "Transparent", "PostEffect", "HUD",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Stages lists every stage in frame order.
func Stages() []Stage {
	out := make([]Stage, stageCount)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

const DefaultPriority = 1000

type StageCallback struct {
	Name     string
	Stage    Stage
	Priority int
	Action   func()
}

type callbackScheduleBuilder struct {
	cb StageCallback
}

// Callback starts building a registration. Without InStage the callback goes
// to StagePostLighting; without WithPriority it gets DefaultPriority.
func Callback(name string, action func()) callbackScheduleBuilder {
	return callbackScheduleBuilder{cb: StageCallback{
		Name:     name,
		Stage:    StagePostLighting,
		Priority: DefaultPriority,
		Action:   action,
	}}
}

func (b callbackScheduleBuilder) InStage(s Stage) callbackScheduleBuilder {
	b.cb.Stage = s
	return b
}

func (b callbackScheduleBuilder) WithPriority(p int) callbackScheduleBuilder {
	b.cb.Priority = p
	return b
}

// CallbackRegistry holds the per-stage callback lists, each kept sorted by
// ascending priority with registration order breaking ties.
type CallbackRegistry struct {
	stages [stageCount][]StageCallback
}

func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{}
}

func (r *CallbackRegistry) Use(b callbackScheduleBuilder) *CallbackRegistry {
	cb := b.cb
	if cb.Stage < 0 || cb.Stage >= stageCount {
		panic(fmt.Sprintf("Stage %v doesn't exist", cb.Stage))
	}
	if cb.Action == nil {
		panic(fmt.Sprintf("Callback %q has no action", cb.Name))
	}
	list := append(r.stages[cb.Stage], cb)
	slices.SortStableFunc(list, func(a, b StageCallback) int { return cmp.Compare(a.Priority, b.Priority) })
	r.stages[cb.Stage] = list
	return r
}

// Run invokes the callbacks of a stage in order. after, when non-nil, runs
// after each callback.
func (r *CallbackRegistry) Run(s Stage, after func()) {
	for _, cb := range r.stages[s] {
		cb.Action()
		if after != nil {
			after()
		}
	}
}

func (r *CallbackRegistry) Callbacks(s Stage) []StageCallback {
	return slices.Clone(r.stages[s])
}

func (r *CallbackRegistry) Len(s Stage) int {
	return len(r.stages[s])
}
