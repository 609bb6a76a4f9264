package audio

// Max absolute error of the polynomials against math.Sin over a full period.
const (
	ApproxSinMaxError     = 1.57e-4
	ApproxSinFineMaxError = 4e-6
)

// ApproxSin approximates sin(x) with a degree-7 odd polynomial after folding
// x into [-π/2, π/2]. It never calls a transcendental function.
func ApproxSin(x float64) float64 {
	x = reduce(x)
	xx := x * x
	return x * (1 - xx*(1-xx*(1-xx/42)/20)/6)
}

// ApproxSinFine is the degree-9 variant of ApproxSin. It costs one more
// multiply-add and is about 40x more accurate.
func ApproxSinFine(x float64) float64 {
	x = reduce(x)
	xx := x * x
	return x * (1 - xx*(1-xx*(1-xx*(1-xx/72)/42)/20)/6)
}

// reduce maps any angle into [-π/2, π/2] using sin(π-x) = sin(x) and the
// 2π period.
func reduce(x float64) float64 {
	x = wrapPhase(x)
	if x >= 0.5*pi {
		if x < 1.5*pi {
			return pi - x
		}
		return x - twoPi
	}
	return x
}

const pi = twoPi / 2
