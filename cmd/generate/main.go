// Package main provides a command-line client that runs one generation
// without the HTTP server.
//
// Usage:
//
//	generate -prompt "a cat in a spacesuit" [-mode video] image1.png [image2.jpg ...]
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maauso/mash-api/internal/bootstrap"
	"github.com/maauso/mash-api/internal/config"
	"github.com/maauso/mash-api/internal/generation"
)

func main() {
	var (
		promptFlag string
		modeFlag   string
		jsonFlag   bool
		images     []string
	)

	flag.StringVar(&promptFlag, "prompt", "", "what to generate (required)")
	flag.StringVar(&modeFlag, "mode", "image", "artifact kind: image or video")
	flag.BoolVar(&jsonFlag, "json", false, "print the full result as JSON")
	flag.Func("image", "reference image file or URL (repeatable, up to 4)", func(v string) error {
		images = append(images, v)
		return nil
	})
	flag.Parse()
	images = append(images, flag.Args()...)

	if err := run(promptFlag, modeFlag, images, jsonFlag, os.Stdout); err != nil {
		exitWithError(err)
	}
}

func run(prompt, mode string, images []string, asJSON bool, out io.Writer) error {
	if len(images) == 0 {
		return errors.New("at least one reference image is required (pass -image or positional paths)")
	}

	refs := make([]string, 0, len(images))
	for _, img := range images {
		ref, err := loadReference(img)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLoggerTo(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.GenerationTimeout)
	defer cancel()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	result, err := deps.Service.Generate(ctx, generation.Request{
		ReferenceImages: refs,
		Prompt:          prompt,
		Mode:            generation.Mode(strings.ToLower(strings.TrimSpace(mode))),
	})
	if err != nil {
		return describe(err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"output":       result.OutputURL,
			"type":         string(result.Type),
			"predictionId": result.PredictionID,
			"sourceUrl":    result.SourceURL,
		})
	}

	_, err = fmt.Fprintln(out, result.OutputURL)
	return err
}

// loadReference turns a local file into a data URL. URLs pass through.
func loadReference(arg string) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "data:") {
		return arg, nil
	}

	data, err := os.ReadFile(arg) // #nosec G304 - path comes from the operator
	if err != nil {
		return "", fmt.Errorf("read reference image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("reference image %s is empty", arg)
	}
	return dataURL(data), nil
}

func dataURL(data []byte) string {
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// describe adds the user-facing guidance carried by typed errors.
func describe(err error) error {
	var rl *generation.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("%w\n%s", err, rl.Details())
	}
	var failed *generation.FailedError
	if errors.As(err, &failed) && failed.Detail != "" {
		return fmt.Errorf("generation failed: %s", failed.Detail)
	}
	return err
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
