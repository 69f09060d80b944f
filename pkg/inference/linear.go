package inference

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// linearCheckpoint is the on-disk form of a linear readout model.
type linearCheckpoint struct {
	Inputs  int         `yaml:"inputs"`
	Outputs int         `yaml:"outputs"`
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
}

// LinearModel is a deterministic affine readout y = Wx + b standing in for
// the trained network in offline runs and tests. It satisfies Model.
type LinearModel struct {
	weights *mat.Dense
	bias    *mat.VecDense
	inputs  int
	outputs int
}

// NewLinearModel builds a linear model from a row-major weight matrix of
// shape outputs x inputs and a bias of length outputs.
func NewLinearModel(weights [][]float64, bias []float64) (*LinearModel, error) {
	outputs := len(weights)
	if outputs == 0 {
		return nil, fmt.Errorf("empty weight matrix")
	}
	inputs := len(weights[0])
	if inputs == 0 {
		return nil, fmt.Errorf("empty weight rows")
	}
	if len(bias) != outputs {
		return nil, fmt.Errorf("bias length %d does not match %d outputs", len(bias), outputs)
	}

	w := mat.NewDense(outputs, inputs, nil)
	for i, row := range weights {
		if len(row) != inputs {
			return nil, fmt.Errorf("ragged weight matrix: row %d has %d values, want %d", i, len(row), inputs)
		}
		w.SetRow(i, row)
	}

	return &LinearModel{
		weights: w,
		bias:    mat.NewVecDense(outputs, append([]float64(nil), bias...)),
		inputs:  inputs,
		outputs: outputs,
	}, nil
}

// LoadLinearModel loads a linear model from a YAML checkpoint file. A
// malformed checkpoint is fatal to the load; there is no partial model.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var ckpt linearCheckpoint
	if err := yaml.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}

	m, err := NewLinearModel(ckpt.Weights, ckpt.Bias)
	if err != nil {
		return nil, fmt.Errorf("malformed checkpoint %s: %v", path, err)
	}
	if ckpt.Inputs != 0 && ckpt.Inputs != m.inputs {
		return nil, fmt.Errorf("checkpoint declares %d inputs, weights have %d", ckpt.Inputs, m.inputs)
	}
	if ckpt.Outputs != 0 && ckpt.Outputs != m.outputs {
		return nil, fmt.Errorf("checkpoint declares %d outputs, weights have %d", ckpt.Outputs, m.outputs)
	}
	return m, nil
}

// SaveCheckpoint writes the model to a YAML checkpoint file.
func (m *LinearModel) SaveCheckpoint(path string) error {
	ckpt := linearCheckpoint{
		Inputs:  m.inputs,
		Outputs: m.outputs,
		Bias:    m.bias.RawVector().Data,
	}
	ckpt.Weights = make([][]float64, m.outputs)
	for i := 0; i < m.outputs; i++ {
		ckpt.Weights[i] = append([]float64(nil), m.weights.RawRowView(i)...)
	}

	data, err := yaml.Marshal(&ckpt)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// OutputWidth returns the width of one forward pass.
func (m *LinearModel) OutputWidth() int { return m.outputs }

// Forward evaluates y = Wx + b on the flattened image.
func (m *LinearModel) Forward(input []float64, channels, res int) ([]float64, error) {
	if len(input) != m.inputs {
		return nil, fmt.Errorf("input length %d does not match model inputs %d", len(input), m.inputs)
	}
	if channels*res*res != m.inputs {
		return nil, fmt.Errorf("declared shape %dx%dx%d does not match model inputs %d", channels, res, res, m.inputs)
	}

	x := mat.NewVecDense(m.inputs, append([]float64(nil), input...))
	var y mat.VecDense
	y.MulVec(m.weights, x)
	y.AddVec(&y, m.bias)

	out := make([]float64, m.outputs)
	copy(out, y.RawVector().Data)
	return out, nil
}
