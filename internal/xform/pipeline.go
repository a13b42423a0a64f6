package xform

import (
	"q3backend/internal/device"
	"q3backend/internal/progcache"
)

// Pipeline owns the projection and modelview slots. Changing either one
// re-derives the combined matrix and uploads all three to the shared
// vertex registers.
type Pipeline struct {
	dev device.Device

	// mvp, projection, modelview: the register order
	slots [3]Matrix
}

func NewPipeline(dev device.Device) *Pipeline {
	p := &Pipeline{dev: dev}
	for i := range p.slots {
		p.slots[i] = Identity()
	}
	return p
}

func (p *Pipeline) SetProjection(m Matrix) {
	p.slots[1] = m
	p.update()
}

func (p *Pipeline) SetModelview(m Matrix) {
	p.slots[2] = m
	p.update()
}

func (p *Pipeline) Projection() Matrix { return p.slots[1] }
func (p *Pipeline) Modelview() Matrix  { return p.slots[2] }
func (p *Pipeline) MVP() Matrix        { return p.slots[0] }

// Reupload pushes the current slots again, for use after a device reset.
func (p *Pipeline) Reupload() {
	p.update()
}

func (p *Pipeline) update() {
	p.slots[0] = Mult(p.slots[2], p.slots[1])

	var buf [48]float32
	for s := 0; s < 3; s++ {
		flat := p.slots[s].Flat()
		copy(buf[s*16:], flat[:])
	}
	p.dev.SetVertexShaderConstants(progcache.VSRegMVPMatrix, buf[:])
}
