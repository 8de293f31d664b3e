package particles

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
)

// BlockSize is the workgroup width every particle kernel is compiled with.
const BlockSize = 512

const (
	KernelAddParticles     = "AddParticles"
	KernelPrepare          = "Prepare"
	KernelGridHash         = "BuildGrid_Hash"
	KernelGridCells        = "BuildGrid_Cells"
	KernelImpulse          = "ProcessInteraction_Impulse"
	KernelSPHDensity       = "ProcessInteraction_SPH_Density"
	KernelSPHForce         = "ProcessInteraction_SPH_Force"
	KernelSphereColliders  = "ProcessColliders_Sphere"
	KernelCapsuleColliders = "ProcessColliders_Capsule"
	KernelBoxColliders     = "ProcessColliders_Box"
	KernelGBufferCollision = "ProcessGBufferCollision"
	KernelForces           = "ProcessForces"
	KernelIntegrate        = "Integrate"

	kernel2DSuffix = "2D"
)

// Binding names shared by kernels and the backends that lay them out.
const (
	BindingParams           = "params"
	BindingParticles        = "particles"
	BindingSpawn            = "spawn"
	BindingSortKeys         = "sort_keys"
	BindingCells            = "cells"
	BindingSphereColliders  = "sphere_colliders"
	BindingCapsuleColliders = "capsule_colliders"
	BindingBoxColliders     = "box_colliders"
	BindingForces           = "forces"
	BindingGBufferNormal    = "gbuffer_normal"
	BindingGBufferPosition  = "gbuffer_position"
)

// kernelBindings lists, in binding-slot order, the resources each kernel
// reads. Variants ending in 2D share the layout of their 3D kernel.
var kernelBindings = map[string][]string{
	KernelAddParticles:     {BindingParams, BindingParticles, BindingSpawn},
	KernelPrepare:          {BindingParams, BindingParticles},
	KernelGridHash:         {BindingParams, BindingParticles, BindingSortKeys},
	KernelGridCells:        {BindingParams, BindingSortKeys, BindingCells},
	KernelImpulse:          {BindingParams, BindingParticles, BindingSortKeys, BindingCells},
	KernelSPHDensity:       {BindingParams, BindingParticles, BindingSortKeys, BindingCells},
	KernelSPHForce:         {BindingParams, BindingParticles, BindingSortKeys, BindingCells},
	KernelSphereColliders:  {BindingParams, BindingParticles, BindingSphereColliders},
	KernelCapsuleColliders: {BindingParams, BindingParticles, BindingCapsuleColliders},
	KernelBoxColliders:     {BindingParams, BindingParticles, BindingBoxColliders},
	KernelGBufferCollision: {BindingParams, BindingParticles, BindingGBufferNormal, BindingGBufferPosition},
	KernelForces:           {BindingParams, BindingParticles, BindingForces},
	KernelIntegrate:        {BindingParams, BindingParticles},
}

var dimensional = []string{KernelGridHash, KernelGridCells, KernelImpulse, KernelSPHDensity, KernelSPHForce}

// KernelBindings returns the binding table for every kernel name, 2D
// variants included. Backends map each entry to its slot index.
func KernelBindings() map[string][]string {
	out := make(map[string][]string, len(kernelBindings)+len(dimensional))
	for name, b := range kernelBindings {
		out[name] = b
	}
	for _, name := range dimensional {
		out[name+kernel2DSuffix] = kernelBindings[name]
	}
	return out
}

// KernelNames lists every kernel the pipeline resolves.
func KernelNames() []string {
	names := make([]string, 0, len(kernelBindings)+len(dimensional))
	for name := range KernelBindings() {
		names = append(names, name)
	}
	return names
}

// KernelSet holds resolved kernels. Dimension-dependent stages are indexed
// by Dimension.
type KernelSet struct {
	AddParticles     gpu.Kernel
	Prepare          gpu.Kernel
	GridHash         [2]gpu.Kernel
	GridCells        [2]gpu.Kernel
	Impulse          [2]gpu.Kernel
	SPHDensity       [2]gpu.Kernel
	SPHForce         [2]gpu.Kernel
	SphereColliders  gpu.Kernel
	CapsuleColliders gpu.Kernel
	BoxColliders     gpu.Kernel
	GBufferCollision gpu.Kernel
	Forces           gpu.Kernel
	Integrate        gpu.Kernel
}

func LoadKernels(cs gpu.ComputeBackend) (*KernelSet, error) {
	ks := &KernelSet{}
	var err error
	find := func(name string) gpu.Kernel {
		if err != nil {
			return nil
		}
		var k gpu.Kernel
		k, err = cs.FindKernel(name)
		if err != nil {
			err = fmt.Errorf("particle kernel %s: %w", name, err)
		}
		return k
	}
	pair := func(name string) [2]gpu.Kernel {
		return [2]gpu.Kernel{Dim3D: find(name), Dim2D: find(name + kernel2DSuffix)}
	}

	ks.AddParticles = find(KernelAddParticles)
	ks.Prepare = find(KernelPrepare)
	ks.GridHash = pair(KernelGridHash)
	ks.GridCells = pair(KernelGridCells)
	ks.Impulse = pair(KernelImpulse)
	ks.SPHDensity = pair(KernelSPHDensity)
	ks.SPHForce = pair(KernelSPHForce)
	ks.SphereColliders = find(KernelSphereColliders)
	ks.CapsuleColliders = find(KernelCapsuleColliders)
	ks.BoxColliders = find(KernelBoxColliders)
	ks.GBufferCollision = find(KernelGBufferCollision)
	ks.Forces = find(KernelForces)
	ks.Integrate = find(KernelIntegrate)
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// Groups returns the workgroup count covering n items, at least one.
func Groups(n int) uint32 {
	if n <= 0 {
		return 1
	}
	return uint32((n + BlockSize - 1) / BlockSize)
}
