package stats

import "math"

// twoSampleTTest runs an independent two-sample t-test with pooled
// variance and returns (t statistic, two-sided p-value).
func twoSampleTTest(a, b []float64) (tStat, pValue float64) {
	na, nb := float64(len(a)), float64(len(b))
	if na < 2 || nb < 2 {
		return 0, 1
	}

	meanA, meanB := mean(a), mean(b)
	varA, varB := sampleVariance(a, meanA), sampleVariance(b, meanB)

	df := na + nb - 2
	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		return 0, 1
	}

	tStat = (meanA - meanB) / se
	pValue = studentTwoSidedP(tStat, df)
	return tStat, pValue
}

// pearson returns the correlation coefficient and the two-sided
// p-value from the t-distribution with n-2 degrees of freedom.
func pearson(x, y []float64) (r, pValue float64) {
	n := len(x)
	if n < 3 || n != len(y) {
		return 0, 1
	}

	meanX, meanY := mean(x), mean(y)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, 1
	}

	r = sxy / math.Sqrt(sxx*syy)
	if r >= 1 || r <= -1 {
		return r, 0
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return r, studentTwoSidedP(t, df)
}

// studentTwoSidedP is the two-sided p-value of a t statistic via the
// regularized incomplete beta function:
// p = I_{df/(df+t^2)}(df/2, 1/2).
func studentTwoSidedP(t, df float64) float64 {
	if df <= 0 {
		return 1
	}
	x := df / (df + t*t)
	return regularizedIncompleteBeta(df/2, 0.5, x)
}

func sampleVariance(values []float64, m float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / (n - 1)
}

// regularizedIncompleteBeta computes I_x(a, b) by continued fraction.
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(lnBeta + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(a, b, x) / a
	}
	return 1 - front*betaContinuedFraction(b, a, 1-x)/b
}

// betaContinuedFraction evaluates the continued fraction for the
// incomplete beta function by the modified Lentz method.
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 3e-14
		tiny          = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}

	return h
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
