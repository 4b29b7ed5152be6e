package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentloop/llm/image"
	"github.com/BaSui01/agentloop/llm/retry"
	"go.uber.org/zap"
)

const (
	// ImageToolName is the name the model uses to call the image tool.
	ImageToolName = "Image Generator"

	imageToolDescription = "Useful for when you need to generate an image from a text description. " +
		"Input should be a detailed image description. The output is the URL of the generated image."

	// ImageToolFailureMessage is the observation shown to the model when generation fails.
	ImageToolFailureMessage = "Sorry, I could not generate that image right now. Please try again later."
)

// ImageToolOptions configures NewImageTool.
type ImageToolOptions struct {
	Name           string
	Description    string
	Model          string
	Size           string
	Timeout        time.Duration
	FailureMessage string
	Retry          *retry.RetryPolicy
	RateLimit      *RateLimitConfig
	Logger         *zap.Logger
}

// NewImageTool wraps an image provider as a ToolSpec. The action input is
// the image description, the observation is the first generated URL.
func NewImageTool(provider image.Provider, opts ImageToolOptions) ToolSpec {
	if opts.Name == "" {
		opts.Name = ImageToolName
	}
	if opts.Description == "" {
		opts.Description = imageToolDescription
	}
	if opts.FailureMessage == "" {
		opts.FailureMessage = ImageToolFailureMessage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retryer := retry.NewBackoffRetryer(opts.Retry, logger.With(zap.String("component", "image_tool")))

	fn := func(ctx context.Context, input string) (string, error) {
		prompt := strings.TrimSpace(input)
		if prompt == "" {
			return "", fmt.Errorf("empty image description")
		}
		return retry.Value(ctx, retryer, func() (string, error) {
			resp, err := provider.Generate(ctx, &image.GenerateRequest{
				Prompt: prompt,
				Model:  opts.Model,
				Size:   opts.Size,
			})
			if err != nil {
				return "", err
			}
			for _, img := range resp.Images {
				if img.URL != "" {
					return img.URL, nil
				}
			}
			return "", fmt.Errorf("%s returned no image url", provider.Name())
		})
	}

	return ToolSpec{
		Name:           opts.Name,
		Description:    opts.Description,
		Func:           fn,
		FailureMessage: opts.FailureMessage,
		Timeout:        opts.Timeout,
		RateLimit:      opts.RateLimit,
	}
}
