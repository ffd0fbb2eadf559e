package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockOptions configures the Bedrock image model.
type BedrockOptions struct {
	Model           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Width           int
	Height          int
}

// bedrockInvoker is the subset of the Bedrock runtime client the painter calls.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockPainter generates poster images with an Amazon Titan image model.
type BedrockPainter struct {
	client bedrockInvoker
	model  string
	width  int
	height int
}

// NewBedrockPainter loads AWS configuration and creates the runtime client.
// Static credentials are used when both keys are set, otherwise the default chain.
func NewBedrockPainter(ctx context.Context, opts BedrockOptions) (*BedrockPainter, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return newBedrockPainter(client, opts), nil
}

func newBedrockPainter(client bedrockInvoker, opts BedrockOptions) *BedrockPainter {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	return &BedrockPainter{client: client, model: opts.Model, width: width, height: height}
}

type titanRequest struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     titanTextToImage      `json:"textToImageParams"`
	ImageGenerationConfig titanGenerationConfig `json:"imageGenerationConfig"`
}

type titanTextToImage struct {
	Text string `json:"text"`
}

type titanGenerationConfig struct {
	NumberOfImages int     `json:"numberOfImages"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	CfgScale       float64 `json:"cfgScale"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// GenerateImage asks the model for one PNG. A response without images yields an
// Image with no data; deciding whether that is fatal is left to the caller.
func (p *BedrockPainter) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	body, err := json.Marshal(titanRequest{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: titanTextToImage{Text: prompt},
		ImageGenerationConfig: titanGenerationConfig{
			NumberOfImages: 1,
			Height:         p.height,
			Width:          p.width,
			CfgScale:       8.0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode image request: %w", err)
	}

	start := time.Now()
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		slog.Warn("image generation failed", "model", p.model, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("invoke image model: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("image model error: %s", resp.Error)
	}
	if len(resp.Images) == 0 || resp.Images[0] == "" {
		return &Image{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(resp.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	slog.Debug("image generation complete", "model", p.model, "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return &Image{MimeType: "image/png", Data: data}, nil
}
