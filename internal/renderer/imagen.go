package renderer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexImagen renders concepts with Vertex AI Imagen, using the uploaded
// item photo as the edit reference so the render stays anchored to the
// actual materials.
type VertexImagen struct {
	projectID          string
	location           string
	model              string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
}

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// NewVertexImagen wires a VertexImagen client.
func NewVertexImagen(cfg VertexImagenConfig) *VertexImagen {
	return &VertexImagen{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              strings.TrimSpace(cfg.Model),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
	}
}

// Configured reports whether the client has enough settings to run.
func (v *VertexImagen) Configured() bool {
	return v != nil && v.projectID != "" && v.location != "" && v.model != ""
}

// RenderWithReference runs an Imagen edit request against the item photo.
func (v *VertexImagen) RenderWithReference(ctx context.Context, prompt string, reference []byte, _ string) (ConceptImage, error) {
	if strings.TrimSpace(prompt) == "" {
		return ConceptImage{}, ErrNoPrompt
	}
	if !v.Configured() {
		return ConceptImage{}, fmt.Errorf("renderer: imagen missing project/location/model")
	}
	if len(reference) == 0 {
		return ConceptImage{}, fmt.Errorf("renderer: imagen requires a reference image")
	}

	instance, err := structpb.NewValue(map[string]any{
		"prompt": StylePrompt(prompt),
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(reference),
		},
	})
	if err != nil {
		return ConceptImage{}, err
	}

	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return ConceptImage{}, err
	}

	endpoint := fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model)
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	if v.serviceAccountJSON != "" {
		options = append(options, option.WithCredentialsJSON([]byte(v.serviceAccountJSON)))
	} else if v.serviceAccount != "" {
		options = append(options, option.WithCredentialsFile(v.serviceAccount))
	} else if v.apiKey != "" {
		options = append(options, option.WithAPIKey(v.apiKey))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: imagen prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: imagen predict: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return ConceptImage{}, fmt.Errorf("renderer: imagen empty prediction response")
	}

	field := resp.Predictions[0].GetStructValue().GetFields()["bytesBase64Encoded"]
	if field == nil {
		return ConceptImage{}, fmt.Errorf("renderer: imagen prediction missing bytes")
	}

	data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: imagen decode result: %w", err)
	}
	return ConceptImage{Data: data, MIME: "image/png"}, nil
}
