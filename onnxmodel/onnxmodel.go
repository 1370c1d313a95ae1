// Package onnxmodel runs a pretrained image classifier (MobileNet and
// friends) through ONNX Runtime and plugs it into imagesort as a LoadFunc.
package onnxmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	imagesort "github.com/anatolykoptev/go-imagesort"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultNumClasses is the ImageNet class count.
const DefaultNumClasses = 1000

// Options locates the model and describes its input/output contract.
type Options struct {
	// Dir holds the model files. When HubRepo is set the model is
	// downloaded into Dir first.
	Dir     string
	HubRepo string // e.g. "Xenova/mobilenet_v2_1.0_224"

	ONNXFile   string // relative to the model folder; default: first *.onnx found
	LabelsFile string // labels.txt (one per line) or config.json (id2label); default: auto-detect

	// LibraryPath is the onnxruntime shared library (libonnxruntime.so).
	// Empty uses ONNX Runtime's platform default.
	LibraryPath string

	InputName  string // default: "input"
	OutputName string // default: "output"
	NumClasses int    // default: number of labels, or DefaultNumClasses

	Input imagesort.PreprocessOpts // must match the analyzer's Preprocess options
}

func (o *Options) defaults() {
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
}

var (
	envMu   sync.Mutex
	envPath string
)

// initEnvironment initializes ONNX Runtime once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		if libPath != "" && envPath != "" && libPath != envPath {
			slog.Warn("imagesort: onnxruntime already initialized with another library", "have", envPath, "want", libPath)
		}
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime (set model.ort_library to libonnxruntime's path): %w", err)
	}
	envPath = libPath
	return nil
}

// Loader returns an imagesort.LoadFunc that loads the model described by opts.
func Loader(opts Options) imagesort.LoadFunc {
	return func(ctx context.Context) (imagesort.Model, error) {
		return Load(ctx, opts)
	}
}

// Model is an ONNX Runtime session plus its labels. Safe for concurrent use.
type Model struct {
	session    *ort.DynamicAdvancedSession
	labels     []string
	numClasses int64
	input      imagesort.PreprocessOpts

	mu sync.Mutex
}

// Load resolves the model files (downloading them if HubRepo is set),
// initializes ONNX Runtime and opens a session.
func Load(ctx context.Context, opts Options) (*Model, error) {
	opts.defaults()

	dir := opts.Dir
	if opts.HubRepo != "" {
		d, err := download(ctx, opts.HubRepo, opts.Dir)
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if dir == "" {
		return nil, errors.New("onnxmodel: no model directory configured")
	}

	onnxPath, err := resolveONNX(dir, opts.ONNXFile)
	if err != nil {
		return nil, err
	}
	labels, err := resolveLabels(dir, opts.LabelsFile)
	if err != nil {
		return nil, err
	}

	numClasses := opts.NumClasses
	if numClasses <= 0 {
		numClasses = len(labels)
	}
	if numClasses <= 0 {
		numClasses = DefaultNumClasses
	}
	// TF-slim exports carry a leading "background" class.
	if len(labels) == numClasses-1 {
		labels = append([]string{"background"}, labels...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(onnxPath,
		[]string{opts.InputName}, []string{opts.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("open onnx session %s: %w", onnxPath, err)
	}

	slog.Info("imagesort: onnx model ready", "path", onnxPath, "labels", len(labels), "classes", numClasses)
	return &Model{
		session:    session,
		labels:     labels,
		numClasses: int64(numClasses),
		input:      opts.Input,
	}, nil
}

// Labels returns the class names.
func (m *Model) Labels() []string { return m.labels }

// Predict runs one inference. Input and output tensors are destroyed
// before Predict returns.
func (m *Model) Predict(ctx context.Context, t imagesort.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size := int64(m.input.Size); size > 0 && !slices.Contains(t.Shape, size) {
		return nil, fmt.Errorf("input shape %v does not match model size %d", t.Shape, size)
	}

	in, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.numClasses))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()

	m.mu.Lock()
	err = m.session.Run([]ort.Value{in}, []ort.Value{out})
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	scores := append([]float32(nil), out.GetData()...)
	return toProbabilities(scores), nil
}

// Close releases the session.
func (m *Model) Close() error {
	return m.session.Destroy()
}

// toProbabilities applies softmax when scores look like logits (any
// negative value or a sum clearly above one).
func toProbabilities(scores []float32) []float32 {
	if len(scores) == 0 {
		return scores
	}
	sum := float32(0)
	logits := false
	for _, s := range scores {
		if s < 0 {
			logits = true
		}
		sum += s
	}
	if !logits && sum <= 1.01 {
		return scores
	}

	maxV := scores[0]
	for _, s := range scores[1:] {
		maxV = max(maxV, s)
	}
	total := 0.0
	exps := make([]float64, len(scores))
	for i, s := range scores {
		exps[i] = math.Exp(float64(s - maxV))
		total += exps[i]
	}
	for i := range scores {
		scores[i] = float32(exps[i] / total)
	}
	return scores
}

// resolveONNX returns dir/name, or the first *.onnx file under dir.
func resolveONNX(dir, name string) (string, error) {
	if name != "" {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("onnx file: %w", err)
		}
		return p, nil
	}
	p, err := findFile(dir, func(n string) bool { return filepath.Ext(n) == ".onnx" })
	if err != nil {
		return "", fmt.Errorf("no .onnx file under %s: %w", dir, err)
	}
	return p, nil
}
