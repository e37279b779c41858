package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultClasses is the class order of the shipped model.
var DefaultClasses = []string{"Cat", "Dog"}

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Metadata is read from the JSON file shipped next to the ONNX model.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      string   `json:"layout"`
	Parameters  int64    `json:"parameters"`
}

func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := md.normalize(); err != nil {
		return nil, err
	}
	return &md, nil
}

func (m *Metadata) normalize() error {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if len(m.Classes) == 0 {
		m.Classes = DefaultClasses
	}
	m.Layout = strings.ToLower(m.Layout)
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("unsupported tensor layout %q", m.Layout)
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive")
	}
	if len(m.InputShape) == 0 {
		if m.Layout == LayoutNHWC {
			m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
		} else {
			m.InputShape = []int64{1, 3, int64(m.ImageSize), int64(m.ImageSize)}
		}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, 1}
	}
	if want := int64(3 * m.ImageSize * m.ImageSize); product(m.InputShape) != want {
		return fmt.Errorf("input_shape %v does not match a %dx%d RGB image", m.InputShape, m.ImageSize, m.ImageSize)
	}
	return nil
}

// InputSize renders the model input as "WxH".
func (m *Metadata) InputSize() string {
	return fmt.Sprintf("%dx%d", m.ImageSize, m.ImageSize)
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
