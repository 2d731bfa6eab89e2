package queue

import "math"

// probFunc is the monotone f with f(0)=0, f(1)=1 that the *ProbFunc
// variants below apply to front/back quantities.
type probFunc func(x float64) float64

func identityFunc(x float64) float64 { return x }
func squareFunc(x float64) float64   { return x * x }
func logFunc(x float64) float64      { return math.Log1p(x) / math.Log(2) }

func powerFunc(n float64) probFunc {
	return func(x float64) float64 { return math.Pow(x, n) }
}

// variant1Prob is f(back)/(f(back)+f(front)), the baseline normalization
// used by IdentityProbFunc/SquareProbFunc/PowerProbFunc/LogProbFunc.
type variant1Prob struct{ f probFunc }

func (p variant1Prob) Prob(front, back float64) float64 {
	fb, ff := p.f(back), p.f(front)
	return fb / (fb + ff)
}

// IdentityProbFunc is f(x)=x.
func IdentityProbFunc() Probability { return variant1Prob{f: identityFunc} }

// SquareProbFunc is f(x)=x^2.
func SquareProbFunc() Probability { return variant1Prob{f: squareFunc} }

// PowerProbFunc is f(x)=x^n.
func PowerProbFunc(n float64) Probability { return variant1Prob{f: powerFunc(n)} }

// LogProbFunc is f(x)=log(1+x)/log(2).
func LogProbFunc() Probability { return variant1Prob{f: logFunc} }

// variant2Prob normalizes by the total queue size: f(back)/f(back+front),
// matching the original's *ProbQueueFunc2 variants.
type variant2Prob struct{ f probFunc }

func (p variant2Prob) Prob(front, back float64) float64 {
	return p.f(back) / p.f(back+front)
}

// PowerProbFunc2 is the total-normalized power variant.
func PowerProbFunc2(n float64) Probability { return variant2Prob{f: powerFunc(n)} }

// LogProbFunc2 is the total-normalized log variant.
func LogProbFunc2() Probability { return variant2Prob{f: logFunc} }

// variant3Prob is 1 - f(front/(front+back)), matching PowerProbQueueFunc3.
type variant3Prob struct{ f probFunc }

func (p variant3Prob) Prob(front, back float64) float64 {
	return 1 - p.f(front/(front+back))
}

// PowerProbFunc3 is the original's third power normalization.
func PowerProbFunc3(n float64) Probability { return variant3Prob{f: powerFunc(n)} }
