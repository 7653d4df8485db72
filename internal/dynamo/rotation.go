package dynamo

import "math"

type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func (a Vec3) Scale(k float64) Vec3 { return Vec3{a[0] * k, a[1] * k, a[2] * k} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a Vec3) Norm() float64 { return math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2]) }

// Quat is a rotation quaternion stored w, x, y, z.
type Quat [4]float64

var IdentityQuat = Quat{1, 0, 0, 0}

func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

func (q Quat) Conj() Quat { return Quat{q[0], -q[1], -q[2], -q[3]} }

// Normalize returns q scaled to unit length; the zero quaternion maps to
// the identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return IdentityQuat
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Rotate maps v from the body frame to the world frame.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := q.Mul(Quat{0, v[0], v[1], v[2]}).Mul(q.Conj())
	return Vec3{p[1], p[2], p[3]}
}

// Derivative is dq/dt for body angular velocity w.
func (q Quat) Derivative(w Vec3) Quat {
	d := q.Mul(Quat{0, w[0], w[1], w[2]})
	return Quat{0.5 * d[0], 0.5 * d[1], 0.5 * d[2], 0.5 * d[3]}
}

// Euler returns roll, pitch and yaw in radians.
func (q Quat) Euler() Vec3 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return Vec3{roll, pitch, yaw}
}

// QuatFromEuler builds the rotation for roll, pitch and yaw in radians.
func QuatFromEuler(roll, pitch, yaw float64) Quat {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return Quat{
		cr*cp*cy + sr*sp*sy,
		sr*cp*cy - cr*sp*sy,
		cr*sp*cy + sr*cp*sy,
		cr*cp*sy - sr*sp*cy,
	}
}
