package viz

import (
	"math"

	"github.com/san-kum/simbridge/internal/dynamo"
	"github.com/san-kum/simbridge/internal/physics"
)

// DefaultTilt is the camera elevation below vertical, in radians.
const DefaultTilt = 0.45

// View projects body-frame points onto a canvas, looking down on the airframe
// from behind with forward pointing up the screen.
type View struct {
	Tilt  float64
	Scale float64 // arm length in pixels
}

func NewView(c *Canvas) View {
	w, h := c.Pixels()
	return View{Tilt: DefaultTilt, Scale: 0.4 * math.Min(float64(w), float64(h))}
}

// Project maps the body point p, rotated into the world frame by att, to
// pixel coordinates centered on the canvas.
func (v View) Project(c *Canvas, att dynamo.Quat, p dynamo.Vec3) (int, int) {
	w := att.Rotate(p)
	sx := -w[1]
	sy := -w[0]*math.Cos(v.Tilt) - w[2]*math.Sin(v.Tilt)
	pw, ph := c.Pixels()
	return pw/2 + int(math.Round(sx*v.Scale)), ph/2 + int(math.Round(sy*v.Scale))
}

// DrawAirframe draws the arms and rotors of motors at attitude att, with a
// heading mark past the nose.
func (v View) DrawAirframe(c *Canvas, motors []physics.Motor, att dynamo.Quat) {
	cx, cy := v.Project(c, att, dynamo.Vec3{})
	rotor := int(math.Max(1, v.Scale/4))
	for _, m := range motors {
		x, y := v.Project(c, att, dynamo.Vec3{m.X, m.Y, 0})
		c.Line(cx, cy, x, y)
		c.Ring(x, y, rotor)
	}
	nx, ny := v.Project(c, att, dynamo.Vec3{1.3, 0, 0})
	hx, hy := v.Project(c, att, dynamo.Vec3{0.7, 0, 0})
	c.Line(hx, hy, nx, ny)
}
