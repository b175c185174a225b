package main

// Run the OCR and cleanup prompt against a local file:
//   go run ./cmd/prompttest -file scan.pdf
//   go run -tags tesseract ./cmd/prompttest -file scan.jpg -provider bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"docscan-backend/internal/bootstrap"
	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/llm"
	"docscan-backend/internal/llm/bedrock"
	"docscan-backend/internal/llm/openai"
	localocr "docscan-backend/internal/ocr/local"
	"docscan-backend/internal/shared/config"
)

type output struct {
	RawText    string         `json:"rawText"`
	Confidence float64        `json:"confidence"`
	Guidance   string         `json:"guidance"`
	Cleanup    cleanup.Result `json:"cleanup"`
}

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a PDF or image")
	paths := flag.String("paths", "", "Comma separated existing file paths offered to the model")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai|bedrock)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	body, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	ctx := context.Background()
	ocrClient := localocr.New(nil, bootstrap.ImageEngine(cfg.TesseractLangs))
	raw, err := ocrClient.ExtractSync(ctx, body)
	if err != nil {
		exitErr(fmt.Sprintf("extract text: %v", err))
	}

	client, err := buildClient(ctx, cfg, *provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	var existing []string
	for _, p := range strings.Split(*paths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			existing = append(existing, p)
		}
	}

	res, err := cleanup.New(llm.WithRetry(client)).Clean(ctx, raw.Text, existing, raw.Confidence)
	if err != nil {
		exitErr(fmt.Sprintf("cleanup: %v", err))
	}

	pretty, err := prettyJSON(output{
		RawText:    raw.Text,
		Confidence: raw.Confidence,
		Guidance:   cleanup.Guidance(raw.Confidence),
		Cleanup:    res,
	})
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func buildClient(ctx context.Context, cfg config.Config, provider, model string) (llm.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, model, 60*time.Second)
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return bedrock.New(awsCfg, model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
