package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"salesforecast/pkg/errs"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeRegressor is a CART-style regression tree. Splits minimise the
// summed squared error of the children; leaves predict the mean target.
type DecisionTreeRegressor struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	MaxFeatures         int     // 0 => use all features, >0 => number of features sampled per split
	MinImpurityDecrease float64 // minimal weighted squared-error decrease to accept a split
	RandomState         int64   // seed for feature subsampling

	root        *Node
	nFeatures   int
	importances []float64
}

// Node is one node of a fitted tree. Fields are exported for gob.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64 // x <= Threshold => Left
	Value     float64 // mean target of the samples that reached the node
	N         int
	Left      *Node
	Right     *Node
}

// Option functional config
type Option func(*DecisionTreeRegressor)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeRegressor) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeRegressor) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns a regressor with sensible defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	d := &DecisionTreeRegressor{
		MaxDepth:            0,
		MinSamplesSplit:     2,
		MinSamplesLeaf:      1,
		MaxFeatures:         0,
		MinImpurityDecrease: 0.0,
		RandomState:         time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API: Fit / Predict / Save/Load
// ---------------------------

// Fit trains the tree on every row of X (n x p) and y.
func (t *DecisionTreeRegressor) Fit(X [][]float64, y []float64) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains the tree on the rows of X named by idx. Positions may
// repeat, which is how bootstrap samples are passed in without copying rows.
func (t *DecisionTreeRegressor) FitIndices(X [][]float64, y []float64, idx []int) error {
	if t.root != nil {
		return ErrAlreadyFitted
	}
	p, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return errs.Data("dtree: empty sample")
	}
	for _, i := range idx {
		if i < 0 || i >= len(X) {
			return errs.Data("dtree: sample index %d out of range [0, %d)", i, len(X))
		}
	}

	t.nFeatures = p
	t.importances = make([]float64, p)
	rnd := rand.New(rand.NewSource(t.RandomState))
	t.root = t.buildNode(X, y, idx, 0, rnd)

	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for j := range t.importances {
			t.importances[j] /= total
		}
	}
	return nil
}

// Predict returns one estimate per row of X.
func (t *DecisionTreeRegressor) Predict(X [][]float64) ([]float64, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i := range X {
		if len(X[i]) != t.nFeatures {
			return nil, errs.Schema("dtree: row %d has %d features, tree was fitted on %d", i, len(X[i]), t.nFeatures)
		}
		out[i] = t.predictSingle(X[i])
	}
	return out, nil
}

// NumFeatures is the width the tree was fitted on.
func (t *DecisionTreeRegressor) NumFeatures() int { return t.nFeatures }

// FeatureImportances returns the share of total squared-error reduction
// credited to each feature. The values sum to 1 unless the tree is a stump.
func (t *DecisionTreeRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// Root exposes the fitted tree structure. Nil before Fit.
func (t *DecisionTreeRegressor) Root() *Node { return t.root }

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeRegressor) MarshalBinary() ([]byte, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, v := range []any{
		t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf, t.MaxFeatures,
		t.MinImpurityDecrease, t.RandomState, t.nFeatures, t.importances, t.root,
	} {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeRegressor) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(data))
	for _, v := range []any{
		&t.MaxDepth, &t.MinSamplesSplit, &t.MinSamplesLeaf, &t.MaxFeatures,
		&t.MinImpurityDecrease, &t.RandomState, &t.nFeatures, &t.importances, &t.root,
	} {
		if err := dec.Decode(v); err != nil {
			return err
		}
	}
	if len(t.importances) != t.nFeatures {
		return errors.New("dtree: corrupt encoding: importances do not match feature count")
	}
	return nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

// splitResult holds the best split found for a single feature.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
	leftIdx   []int
	rightIdx  []int
}

// pair is a feature value and the row it came from.
type pair struct {
	v float64
	i int
}

func (t *DecisionTreeRegressor) buildNode(X [][]float64, y []float64, idx []int, depth int, rnd *rand.Rand) *Node {
	mean, sse := meanSSE(y, idx)
	node := &Node{Leaf: true, Value: mean, N: len(idx)}

	if isConstant(y, idx) || (t.MinSamplesSplit > 0 && len(idx) < t.MinSamplesSplit) {
		return node
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return node
	}

	p := t.nFeatures
	featIndices := make([]int, p)
	for j := 0; j < p; j++ {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		for i := 0; i < t.MaxFeatures; i++ {
			j := i + rnd.Intn(p-i)
			featIndices[i], featIndices[j] = featIndices[j], featIndices[i]
		}
		featIndices = featIndices[:t.MaxFeatures]
	}

	best := splitResult{feature: -1}
	for _, f := range featIndices {
		result := t.findBestSplitForFeature(X, y, idx, f, mean, sse)
		if result.feature >= 0 && result.gain > best.gain {
			best = result
		}
	}

	if best.feature == -1 || best.gain/float64(len(idx)) <= t.MinImpurityDecrease {
		return node
	}

	t.importances[best.feature] += best.gain
	node.Leaf = false
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = t.buildNode(X, y, best.leftIdx, depth+1, rnd)
	node.Right = t.buildNode(X, y, best.rightIdx, depth+1, rnd)
	return node
}

// findBestSplitForFeature scans every boundary between distinct sorted values
// of feature f, tracking running sums so each candidate costs O(1). The sums
// run over y minus the node mean; raw sales-scale targets would cancel in
// sum(y^2) - sum(y)^2/n.
func (t *DecisionTreeRegressor) findBestSplitForFeature(X [][]float64, y []float64, idx []int, f int, mean, parentSSE float64) splitResult {
	result := splitResult{feature: -1}

	valid := make([]pair, 0, len(idx))
	for _, ii := range idx {
		valid = append(valid, pair{X[ii][f], ii})
	}
	sort.SliceStable(valid, func(a, b int) bool { return valid[a].v < valid[b].v })

	var totalSum, totalSq float64
	for _, pv := range valid {
		d := y[pv.i] - mean
		totalSum += d
		totalSq += d * d
	}

	minLeaf := t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	n := len(valid)
	bestAt := -1
	var leftSum, leftSq float64
	for s := 1; s < n; s++ {
		yv := y[valid[s-1].i] - mean
		leftSum += yv
		leftSq += yv * yv
		if valid[s].v == valid[s-1].v {
			continue
		}
		if s < minLeaf || n-s < minLeaf {
			continue
		}
		rightSum := totalSum - leftSum
		rightSq := totalSq - leftSq
		sseL := nonNeg(leftSq - leftSum*leftSum/float64(s))
		sseR := nonNeg(rightSq - rightSum*rightSum/float64(n-s))
		gain := parentSSE - sseL - sseR
		if gain > result.gain {
			result.gain = gain
			result.feature = f
			result.threshold = (valid[s-1].v + valid[s].v) / 2.0
			bestAt = s
		}
	}
	if bestAt < 0 {
		return splitResult{feature: -1}
	}
	result.leftIdx = indicesFromPairs(valid[:bestAt])
	result.rightIdx = indicesFromPairs(valid[bestAt:])
	return result
}

// ---------------------------
// Helpers used in buildNode
// ---------------------------

func checkTrainingSet(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, errs.Data("empty X")
	}
	if len(y) != len(X) {
		return 0, errs.Data("X has %d rows but y has %d values", len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, errs.Data("X has no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, errs.Data("row %d has %d features, expected %d", i, len(X[i]), p)
		}
		for j, v := range X[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, errs.Data("non-finite value at row %d feature %d", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, errs.Data("non-finite target at row %d", i)
		}
	}
	return p, nil
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

func isConstant(y []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			return false
		}
	}
	return true
}

func indicesFromPairs(pairs []pair) []int {
	out := make([]int, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.i)
	}
	return out
}

func nonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// ---------------------------
// Prediction helper
// ---------------------------

func (t *DecisionTreeRegressor) predictSingle(x []float64) float64 {
	node := t.root
	for !node.Leaf {
		val := x[node.Feature]
		if math.IsNaN(val) {
			// missing: follow the branch that saw more samples
			if node.Left.N >= node.Right.N {
				node = node.Left
			} else {
				node = node.Right
			}
			continue
		}
		if val <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}
