package classifier

// Bicubic resampling of packed 8-bit RGB pixels that matches Pillow's
// Image.resize(size, BICUBIC) byte for byte: separable passes (horizontal first),
// kernel support widened when shrinking, weights normalized per output pixel and
// quantized to 22-bit fixed point, 8-bit rounding between the two passes.

const precisionBits = 32 - 8 - 2

// bicubic is the cubic convolution kernel with a = -0.5.
func bicubic(x float64) float64 {
	const a = -0.5
	if x < 0 {
		x = -x
	}
	if x < 1 {
		return ((a+2)*x-(a+3))*x*x + 1
	}
	if x < 2 {
		return (((x-5)*x+8)*x - 4) * a
	}
	return 0
}

// axis holds, per output index, the first contributing input index and the fixed-point
// weights.
type axis struct {
	start []int
	k     [][]int64
}

func bicubicAxis(in, out int) axis {
	const support = 2.0
	scale := float64(in) / float64(out)
	filterScale := scale
	if filterScale < 1 {
		filterScale = 1
	}
	width := support * filterScale
	ss := 1 / filterScale

	ax := axis{start: make([]int, out), k: make([][]int64, out)}
	for xx := 0; xx < out; xx++ {
		center := (float64(xx) + 0.5) * scale
		xmin := int(center - width + 0.5)
		if xmin < 0 {
			xmin = 0
		}
		xmax := int(center + width + 0.5)
		if xmax > in {
			xmax = in
		}

		w := make([]float64, xmax-xmin)
		var total float64
		for x := range w {
			w[x] = bicubic((float64(x+xmin) - center + 0.5) * ss)
			total += w[x]
		}
		kk := make([]int64, len(w))
		for x, v := range w {
			if total != 0 {
				v /= total
			}
			if v < 0 {
				kk[x] = int64(-0.5 + v*(1<<precisionBits))
			} else {
				kk[x] = int64(0.5 + v*(1<<precisionBits))
			}
		}
		ax.start[xx] = xmin
		ax.k[xx] = kk
	}
	return ax
}

func clip8(v int64) uint8 {
	v >>= precisionBits
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// resizeRGB scales packed RGB pixels (3 bytes each, row-major) from sw×sh to dw×dh.
func resizeRGB(pix []uint8, sw, sh, dw, dh int) []uint8 {
	if dw != sw {
		ax := bicubicAxis(sw, dw)
		out := make([]uint8, dw*sh*3)
		for y := 0; y < sh; y++ {
			row := pix[y*sw*3 : (y+1)*sw*3]
			for x := 0; x < dw; x++ {
				start, kk := ax.start[x], ax.k[x]
				for c := 0; c < 3; c++ {
					acc := int64(1) << (precisionBits - 1)
					for i, k := range kk {
						acc += int64(row[(start+i)*3+c]) * k
					}
					out[(y*dw+x)*3+c] = clip8(acc)
				}
			}
		}
		pix, sw = out, dw
	}
	if dh != sh {
		ax := bicubicAxis(sh, dh)
		out := make([]uint8, sw*dh*3)
		for y := 0; y < dh; y++ {
			start, kk := ax.start[y], ax.k[y]
			for x := 0; x < sw; x++ {
				for c := 0; c < 3; c++ {
					acc := int64(1) << (precisionBits - 1)
					for i, k := range kk {
						acc += int64(pix[((start+i)*sw+x)*3+c]) * k
					}
					out[(y*sw+x)*3+c] = clip8(acc)
				}
			}
		}
		pix = out
	}
	return pix
}
