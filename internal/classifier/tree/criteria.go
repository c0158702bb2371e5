package tree

// Gini scores classification splits. W is the sample weight and G the
// weight of FAKE samples; leaves hold P(FAKE).
type Gini struct {
	MinLeafWeight float64
}

func giniImpurity(s Stats) float64 {
	if s.W <= 0 {
		return 0
	}
	return 2 * s.G * (s.W - s.G) / s.W
}

func (c Gini) Gain(parent, left, right Stats) float64 {
	return giniImpurity(parent) - giniImpurity(left) - giniImpurity(right)
}

func (c Gini) Leaf(s Stats) float64 {
	if s.W <= 0 {
		return 0.5
	}
	return clamp01(s.G / s.W)
}

func (c Gini) Admissible(left, right Stats) bool {
	min := c.MinLeafWeight
	if min <= 0 {
		min = 1
	}
	return left.W >= min-1e-9 && right.W >= min-1e-9
}

// Newton scores first-order splits on gradients (squared error on the
// pseudo-residuals) and fits leaves with a single Newton step, as in
// classic gradient boosting on log-loss. G holds gradients, H hessians and
// W sample counts.
type Newton struct {
	MinLeafSamples float64
}

func (c Newton) Gain(parent, left, right Stats) float64 {
	if left.W <= 0 || right.W <= 0 || parent.W <= 0 {
		return 0
	}
	return left.G*left.G/left.W + right.G*right.G/right.W - parent.G*parent.G/parent.W
}

func (c Newton) Leaf(s Stats) float64 {
	if s.H < 1e-12 {
		return 0
	}
	return -s.G / s.H
}

func (c Newton) Admissible(left, right Stats) bool {
	min := c.MinLeafSamples
	if min <= 0 {
		min = 1
	}
	return left.W >= min && right.W >= min
}

// SecondOrder is the regularised split rule of XGBoost: gain uses both
// gradient and hessian sums with L2 penalty Lambda on leaf weights and a
// fixed cost Gamma per split.
type SecondOrder struct {
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
}

func (c SecondOrder) score(s Stats) float64 {
	return s.G * s.G / (s.H + c.Lambda)
}

func (c SecondOrder) Gain(parent, left, right Stats) float64 {
	return 0.5*(c.score(left)+c.score(right)-c.score(parent)) - c.Gamma
}

func (c SecondOrder) Leaf(s Stats) float64 {
	d := s.H + c.Lambda
	if d < 1e-12 {
		return 0
	}
	return -s.G / d
}

func (c SecondOrder) Admissible(left, right Stats) bool {
	return left.H >= c.MinChildWeight && right.H >= c.MinChildWeight && left.W > 0 && right.W > 0
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
