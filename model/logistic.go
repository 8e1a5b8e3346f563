package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type fitResult struct {
	beta       []float64
	iterations int
	converged  bool
}

// irls fits weighted logistic regression by Newton's method. Each step
// solves (X'WX + ridge) d = X'(w(y-p)) - ridge*beta with a Cholesky
// factorization; the ridge is raised tenfold until the system is positive
// definite. x rows carry a leading 1 for the intercept.
func irls(x [][]float64, y []bool, w []float64, o Options) fitResult {
	p := len(x[0])
	beta := make([]float64, p)
	res := fitResult{beta: beta}

	hess := mat.NewSymDense(p, nil)
	grad := mat.NewVecDense(p, nil)
	var step mat.VecDense
	var chol mat.Cholesky

	for iter := 1; iter <= o.MaxIter; iter++ {
		res.iterations = iter
		hess.Zero()
		grad.Zero()
		for i, xi := range x {
			mu := sigmoid(dot(xi, beta))
			yi := 0.0
			if y[i] {
				yi = 1
			}
			r := w[i] * (yi - mu)
			v := w[i] * mu * (1 - mu)
			for a := 0; a < p; a++ {
				grad.SetVec(a, grad.AtVec(a)+r*xi[a])
				for b := a; b < p; b++ {
					hess.SetSym(a, b, hess.At(a, b)+v*xi[a]*xi[b])
				}
			}
		}

		ridge := o.Ridge
		for {
			sys := mat.NewSymDense(p, nil)
			sys.CopySym(hess)
			rhs := mat.VecDenseCopyOf(grad)
			for a := 1; a < p; a++ {
				sys.SetSym(a, a, sys.At(a, a)+ridge)
				rhs.SetVec(a, rhs.AtVec(a)-ridge*beta[a])
			}
			if chol.Factorize(sys) {
				if err := chol.SolveVecTo(&step, rhs); err == nil {
					break
				}
			}
			if ridge == 0 {
				ridge = 1e-8
			} else {
				ridge *= 10
			}
			if ridge > 1e6 {
				return res
			}
		}

		maxStep := 0.0
		for a := 0; a < p; a++ {
			d := step.AtVec(a)
			beta[a] += d
			maxStep = math.Max(maxStep, math.Abs(d))
		}
		if maxStep < o.Tolerance {
			res.converged = true
			return res
		}
	}
	return res
}

func predict(x [][]float64, beta []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = sigmoid(dot(xi, beta))
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
