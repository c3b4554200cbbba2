package artifacts

import (
	"fmt"
	"math"
)

// HiddenLayer is one fully connected block of the frozen MLP: a linear
// transform followed by ReLU and (optionally) batch normalization, in the
// order the networks were trained with. Dropout is inference-disabled and
// therefore not represented.
type HiddenLayer struct {
	Weight [][]float64 `json:"weight"` // [out][in]
	Bias   []float64   `json:"bias"`
	BNorm  *BatchNorm  `json:"batch_norm,omitempty"`
}

// BatchNorm holds the frozen batch normalization statistics of a layer.
type BatchNorm struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Eps   float64   `json:"eps"`
}

// OutputKind selects how the final layer's logits become a survival curve.
type OutputKind string

const (
	// OutputPMF treats logits as a softmax event-time distribution;
	// survival is one minus its running sum (DeepHit family).
	OutputPMF OutputKind = "pmf"
	// OutputHazard treats logits as per-interval sigmoid hazards;
	// survival is the running product of (1 - hazard).
	OutputHazard OutputKind = "hazard"
)

// Network is a frozen inference-only survival MLP.
type Network struct {
	InFeatures   int           `json:"in_features"`
	OutFeatures  int           `json:"out_features"`
	Output       OutputKind    `json:"output"`
	Hidden       []HiddenLayer `json:"hidden"`
	OutputWeight [][]float64   `json:"output_weight"` // [out][in], trained without bias
}

// validate checks the internal shape consistency of the network.
func (n *Network) validate() error {
	if n.Output != OutputPMF && n.Output != OutputHazard {
		return fmt.Errorf("unknown output kind %q", n.Output)
	}
	width := n.InFeatures
	for i, layer := range n.Hidden {
		if len(layer.Weight) == 0 {
			return fmt.Errorf("hidden layer %d has no weights", i)
		}
		for j, row := range layer.Weight {
			if len(row) != width {
				return fmt.Errorf("hidden layer %d row %d: expected width %d, got %d", i, j, width, len(row))
			}
		}
		out := len(layer.Weight)
		if len(layer.Bias) != out {
			return fmt.Errorf("hidden layer %d: bias length %d != %d", i, len(layer.Bias), out)
		}
		if bn := layer.BNorm; bn != nil {
			if len(bn.Gamma) != out || len(bn.Beta) != out || len(bn.Mean) != out || len(bn.Var) != out {
				return fmt.Errorf("hidden layer %d: batch norm parameter length mismatch", i)
			}
		}
		width = out
	}
	if len(n.OutputWeight) != n.OutFeatures {
		return fmt.Errorf("output layer: expected %d rows, got %d", n.OutFeatures, len(n.OutputWeight))
	}
	for j, row := range n.OutputWeight {
		if len(row) != width {
			return fmt.Errorf("output layer row %d: expected width %d, got %d", j, width, len(row))
		}
	}
	return nil
}

// forward runs the hidden blocks and final linear layer, returning logits.
func (n *Network) forward(x []float64) []float64 {
	h := x
	for i := range n.Hidden {
		layer := &n.Hidden[i]
		out := make([]float64, len(layer.Weight))
		for j, row := range layer.Weight {
			sum := layer.Bias[j]
			for k, w := range row {
				sum += w * h[k]
			}
			if sum < 0 { // ReLU
				sum = 0
			}
			out[j] = sum
		}
		if bn := layer.BNorm; bn != nil {
			for j := range out {
				out[j] = bn.Gamma[j]*(out[j]-bn.Mean[j])/math.Sqrt(bn.Var[j]+bn.Eps) + bn.Beta[j]
			}
		}
		h = out
	}
	logits := make([]float64, n.OutFeatures)
	for j, row := range n.OutputWeight {
		var sum float64
		for k, w := range row {
			sum += w * h[k]
		}
		logits[j] = sum
	}
	return logits
}

// PredictSurvival runs the network on a selected feature vector and
// returns the survival probability at each of the model's time cuts.
func (n *Network) PredictSurvival(x []float64) ([]float64, error) {
	if len(x) != n.InFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", n.InFeatures, len(x))
	}
	logits := n.forward(x)

	surv := make([]float64, len(logits))
	switch n.Output {
	case OutputPMF:
		pmf := softmax(logits)
		cum := 0.0
		for i, p := range pmf {
			cum += p
			surv[i] = clamp01(1.0 - cum)
		}
	case OutputHazard:
		prod := 1.0
		for i, l := range logits {
			prod *= 1.0 - sigmoid(l)
			surv[i] = clamp01(prod)
		}
	default:
		return nil, fmt.Errorf("unknown output kind %q", n.Output)
	}
	return surv, nil
}

func softmax(logits []float64) []float64 {
	maxL := logits[0]
	for _, l := range logits[1:] {
		if l > maxL {
			maxL = l
		}
	}
	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(l - maxL)
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
