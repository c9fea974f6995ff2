package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pestmatch/internal/domain"
)

// TFServingModel calls a model hosted by TensorFlow Serving over its REST API.
type TFServingModel struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

type predictRequest struct {
	Instances []any `json:"instances"`
}

type predictResponse struct {
	Predictions []any  `json:"predictions"`
	Error       string `json:"error,omitempty"`
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

func NewTFServingModel(baseURL, model string, dimension int, timeout time.Duration) *TFServingModel {
	if baseURL == "" {
		baseURL = "http://localhost:8501"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TFServingModel{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

// LoadTFServingModel checks that the server reports an AVAILABLE version of
// the model before handing it out.
func LoadTFServingModel(ctx context.Context, baseURL, model string, dimension int, timeout time.Duration) (*TFServingModel, error) {
	m := NewTFServingModel(baseURL, model, dimension, timeout)
	if err := m.checkAvailable(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TFServingModel) checkAvailable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/models/"+m.model, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model status returned %d: %s", resp.StatusCode, string(body))
	}

	var status modelStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to parse model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %s has no AVAILABLE version", m.model)
}

func (m *TFServingModel) Predict(ctx context.Context, input domain.Tensor) ([]float32, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("expected a rank-4 input, got %v", input.Shape)
	}

	reqBody := predictRequest{Instances: []any{nest(input.Data, input.Shape[1:])}}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := m.baseURL + "/v1/models/" + m.model + ":predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predict returned status %d: %s", resp.StatusCode, string(body))
	}

	var predResp predictResponse
	if err := json.Unmarshal(body, &predResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", bodyPreview, err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("model server error: %s", predResp.Error)
	}
	if len(predResp.Predictions) == 0 {
		return nil, fmt.Errorf("model server returned no predictions")
	}

	var out []float32
	if err := flattenJSON(predResp.Predictions[0], &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *TFServingModel) Dimension() int {
	return m.dimension
}

func (m *TFServingModel) ModelName() string {
	return m.model
}

func (m *TFServingModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// nest reshapes flat row-major data into nested slices for JSON encoding.
func nest(data []float32, shape []int) any {
	if len(shape) == 1 {
		return data[:shape[0]]
	}
	stride := len(data) / shape[0]
	rows := make([]any, shape[0])
	for i := range rows {
		rows[i] = nest(data[i*stride:(i+1)*stride], shape[1:])
	}
	return rows
}

// flattenJSON appends every number in an arbitrarily nested JSON array.
func flattenJSON(v any, out *[]float32) error {
	switch val := v.(type) {
	case float64:
		*out = append(*out, float32(val))
	case []any:
		for _, item := range val {
			if err := flattenJSON(item, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unexpected prediction value of type %T", v)
	}
	return nil
}
