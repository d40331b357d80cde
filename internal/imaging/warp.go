package imaging

import "github.com/pkg/errors"

// Affine is the six-scalar forward map from input to output:
// (x',y') = (a*x + c*y + e, b*x + d*y + f).
type Affine struct {
	A, B, C, D, E, F float64
}

// mat3 is the row-major 3x3 homogeneous extension of Affine.
type mat3 [9]float64

func (a Affine) toMat3() mat3 {
	return mat3{
		a.A, a.C, a.E,
		a.B, a.D, a.F,
		0, 0, 1,
	}
}

// invert computes the inverse of a 3x3 matrix via the adjugate, which
// is cheap enough at one-call-per-warp that it doesn't need a general
// linear-algebra dependency.
func (m mat3) invert() (mat3, error) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if det == 0 {
		return mat3{}, errors.New("affine transform is singular")
	}
	invDet := 1 / det

	return mat3{
		(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet,
		(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet,
		(d*h - e*g) * invDet, (b*g - a*h) * invDet, (a*e - b*d) * invDet,
	}, nil
}

func (m mat3) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// cubicKernel is the Catmull-Rom cubic convolution kernel (a = -0.5),
// the standard choice for "bicubic" resampling.
func cubicKernel(t float64) float64 {
	const a = -0.5
	t = absF(t)
	switch {
	case t <= 1:
		return (a+2)*t*t*t - (a+3)*t*t + 1
	case t < 2:
		return a*t*t*t - 5*a*t*t + 8*a*t - 4*a
	default:
		return 0
	}
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// bicubicSample samples src at floating-point coordinates (fx, fy)
// using a 4x4 cubic convolution neighborhood. Pixels outside src are
// treated as zero, matching spec §3: "pixels outside the input are
// zero".
func bicubicSample(src *Gray8, fx, fy float64) uint8 {
	x0 := int(floorF(fx))
	y0 := int(floorF(fy))

	var sum, wsum float64
	for j := -1; j <= 2; j++ {
		wy := cubicKernel(fy - float64(y0+j))
		for i := -1; i <= 2; i++ {
			wx := cubicKernel(fx - float64(x0+i))
			w := wx * wy
			if w == 0 {
				continue
			}
			px, py := x0+i, y0+j
			var v float64
			if px >= 0 && py >= 0 && px < src.Width && py < src.Height {
				v = float64(src.At(px, py))
			}
			sum += v * w
			wsum += w
		}
	}
	if wsum == 0 {
		return 0
	}
	v := sum
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

func floorF(x float64) float64 {
	i := float64(int64(x))
	if x < 0 && i != x {
		i--
	}
	return i
}

// Warp produces an outW x outH image by resampling src through the
// inverse of aff's homogeneous extension with bicubic interpolation,
// per spec §3 and §4.A.
func Warp(src *Gray8, aff Affine, outW, outH int) (*Gray8, error) {
	inv, err := aff.toMat3().invert()
	if err != nil {
		return nil, errors.Wrap(err, "inverting affine transform")
	}
	out := NewGray8(outW, outH)
	for y := 0; y < outH; y++ {
		fy := float64(y)
		for x := 0; x < outW; x++ {
			sx, sy := inv.apply(float64(x), fy)
			out.Set(x, y, bicubicSample(src, sx, sy))
		}
	}
	return out, nil
}
