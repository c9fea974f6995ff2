package embedding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"pestmatch/internal/domain"
)

// ONNXOptions configures a local ONNX Runtime model.
type ONNXOptions struct {
	Source            string // file path or http(s) URL
	CacheDir          string // where downloaded artifacts are kept
	SharedLibraryPath string // onnxruntime shared library, empty for the platform default
	InputName         string
	OutputName        string
	Layout            string // "nhwc" or "nchw"
	Dimension         int
	Timeout           time.Duration
}

var ortInit struct {
	sync.Mutex
	done bool
}

// ONNXModel runs a pretrained graph through ONNX Runtime on the CPU.
type ONNXModel struct {
	name      string
	session   *ort.DynamicAdvancedSession
	layout    string
	dimension int
}

// LoadONNXModel resolves the artifact (downloading it once if it is a URL),
// initializes the runtime and opens a session.
func LoadONNXModel(ctx context.Context, opts ONNXOptions) (*ONNXModel, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("onnx model needs a positive output dimension")
	}

	modelPath, err := resolveArtifact(ctx, opts.Source, opts.CacheDir, opts.Timeout)
	if err != nil {
		return nil, err
	}

	if err := initRuntime(opts.SharedLibraryPath); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open onnx session for %s: %w", modelPath, err)
	}

	return &ONNXModel{
		name:      strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		session:   session,
		layout:    opts.Layout,
		dimension: opts.Dimension,
	}, nil
}

func initRuntime(libPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()
	if ortInit.done {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	ortInit.done = true
	return nil
}

func (m *ONNXModel) Predict(_ context.Context, input domain.Tensor) ([]float32, error) {
	if m.layout == "nchw" {
		input = ToNCHW(input)
	}

	shape := make([]int64, len(input.Shape))
	for i, d := range input.Shape {
		shape[i] = int64(d)
	}

	in, err := ort.NewTensor(ort.NewShape(shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.dimension)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := out.GetData()
	result := make([]float32, len(data))
	copy(result, data)
	return result, nil
}

func (m *ONNXModel) Dimension() int {
	return m.dimension
}

func (m *ONNXModel) ModelName() string {
	return m.name
}

func (m *ONNXModel) Close() error {
	return m.session.Destroy()
}

// resolveArtifact returns a local path for source. URLs are downloaded into
// cacheDir once; later loads reuse the cached file.
func resolveArtifact(ctx context.Context, source, cacheDir string, timeout time.Duration) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if _, err := os.Stat(source); err != nil {
			return "", fmt.Errorf("model artifact not found: %w", err)
		}
		return source, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model cache: %w", err)
	}
	local := filepath.Join(cacheDir, path.Base(source))
	if info, err := os.Stat(local); err == nil && info.Size() > 0 {
		return local, nil
	}

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(cacheDir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("model download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", err
	}
	return local, nil
}

// ToNCHW transposes a [N,H,W,C] tensor to [N,C,H,W].
func ToNCHW(t domain.Tensor) domain.Tensor {
	if len(t.Shape) != 4 {
		return t
	}
	n, h, w, c := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	out := make([]float32, len(t.Data))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					src := ((b*h+y)*w+x)*c + ch
					dst := ((b*c+ch)*h+y)*w + x
					out[dst] = t.Data[src]
				}
			}
		}
	}
	return domain.Tensor{Shape: []int{n, c, h, w}, Data: out}
}
