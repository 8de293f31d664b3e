package particles

import (
	"math"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// hostPool is the SoA particle storage of one set on the CPU path.
type hostPool struct {
	pos  []mgl32.Vec3
	vel  []mgl32.Vec3
	age  []float32
	life []float32

	alive    int
	capacity int
}

func newHostPool(capacity int) *hostPool {
	return &hostPool{
		pos:      make([]mgl32.Vec3, capacity),
		vel:      make([]mgl32.Vec3, capacity),
		age:      make([]float32, capacity),
		life:     make([]float32, capacity),
		capacity: capacity,
	}
}

// killAt swap-removes particle i.
func (p *hostPool) killAt(i int) {
	last := p.alive - 1
	p.pos[i] = p.pos[last]
	p.vel[i] = p.vel[last]
	p.age[i] = p.age[last]
	p.life[i] = p.life[last]
	p.alive--
}

// CPUSimulator is the host reference path. It spawns, applies forces,
// resolves sphere, capsule and box colliders and integrates; particle
// interaction and G-buffer collision are GPU only.
type CPUSimulator struct {
	pools map[*ParticleSet]*hostPool
}

func NewCPUSimulator() *CPUSimulator {
	return &CPUSimulator{pools: make(map[*ParticleSet]*hostPool)}
}

func (s *CPUSimulator) OnEnable(w *World) error { return nil }
func (s *CPUSimulator) Start(w *World) error    { return nil }

func (s *CPUSimulator) OnDisable(w *World) {
	clear(s.pools)
}

func (s *CPUSimulator) Update(w *World, f Frame) error {
	dt := f.DeltaTime
	if dt <= 0 {
		dt = 1.0 / 60.0
	}

	live := make(map[*ParticleSet]bool, len(w.sets))
	for _, set := range w.sets {
		live[set] = true
		pl, ok := s.pools[set]
		if !ok {
			pl = newHostPool(set.Config.MaxParticles)
			s.pools[set] = pl
		}
		s.spawn(pl, set.takePending())
		s.step(pl, set.Config, f.Snapshot, dt)
	}
	for set := range s.pools {
		if !live[set] {
			delete(s.pools, set)
		}
	}
	return nil
}

func (s *CPUSimulator) spawn(pl *hostPool, spawns []core.ParticleSpawn) {
	for _, sp := range spawns {
		if pl.alive >= pl.capacity {
			return
		}
		i := pl.alive
		pl.alive++
		pl.pos[i] = sp.Position
		pl.vel[i] = sp.Velocity
		pl.age[i] = 0
		pl.life[i] = sp.Lifetime
	}
}

func (s *CPUSimulator) step(pl *hostPool, cfg SetConfig, snap core.Snapshot, dt float32) {
	drag := float32(math.Max(0, float64(1.0-cfg.Damping*dt)))
	radius := cfg.ParticleRadius

	i := 0
	for i < pl.alive {
		age := pl.age[i] + dt
		if pl.life[i] > 0 && age >= pl.life[i] {
			pl.killAt(i)
			continue
		}

		p, v := pl.pos[i], pl.vel[i]
		for _, force := range snap.Forces {
			v = v.Add(force.Acceleration(p).Mul(dt))
		}
		v = v.Mul(drag)
		p = p.Add(v.Mul(dt))

		for _, c := range snap.Spheres {
			p, v = pushOutSphere(p, v, c.Center, c.Radius+radius)
		}
		for _, c := range snap.Capsules {
			p, v = pushOutSphere(p, v, closestOnSegment(p, c.PosA, c.PosB), c.Radius+radius)
		}
		for _, c := range snap.Boxes {
			p, v = pushOutBox(p, v, c, radius)
		}
		if cfg.Dimension == Dim2D {
			p[2], v[2] = 0, 0
		}

		pl.pos[i], pl.vel[i], pl.age[i] = p, v, age
		i++
	}
}

// pushOutSphere moves p onto the sphere surface and removes the inward
// velocity component.
func pushOutSphere(p, v, center mgl32.Vec3, r float32) (mgl32.Vec3, mgl32.Vec3) {
	d := p.Sub(center)
	dist := d.Len()
	if dist >= r || dist == 0 {
		return p, v
	}
	n := d.Mul(1 / dist)
	p = center.Add(n.Mul(r))
	if vn := v.Dot(n); vn < 0 {
		v = v.Sub(n.Mul(vn))
	}
	return p, v
}

func closestOnSegment(p, a, b mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return a
	}
	t := mgl32.Clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return a.Add(ab.Mul(t))
}

// pushOutBox pushes p out through the nearest face when inside the box
// grown by r.
func pushOutBox(p, v mgl32.Vec3, box core.BoxCollider, r float32) (mgl32.Vec3, mgl32.Vec3) {
	best := float32(-math.MaxFloat32)
	bestPlane := -1
	for i, pl := range box.Planes {
		d := pl.Vec3().Dot(p) + pl[3] - r
		if d > 0 {
			return p, v
		}
		if d > best {
			best, bestPlane = d, i
		}
	}
	if bestPlane < 0 {
		return p, v
	}
	n := box.Planes[bestPlane].Vec3()
	p = p.Sub(n.Mul(best))
	if vn := v.Dot(n); vn < 0 {
		v = v.Sub(n.Mul(vn))
	}
	return p, v
}

// Particles returns a host copy of the live particles of set.
func (s *CPUSimulator) Particles(set *ParticleSet) []core.Particle {
	pl, ok := s.pools[set]
	if !ok {
		return nil
	}
	out := make([]core.Particle, pl.alive)
	for i := range out {
		remaining := pl.life[i] - pl.age[i]
		if pl.life[i] <= 0 {
			remaining = math.MaxFloat32
		}
		out[i] = core.Particle{Position: pl.pos[i], Velocity: pl.vel[i], Lifetime: remaining}
	}
	return out
}
