package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"metamorphosis/internal/analyzer"
	"metamorphosis/internal/blueprint"
)

// One-shot analysis: read a photo of waste material, print the design
// blueprint as JSON. Useful for trying prompts without running the server.
func main() {
	var (
		imagePath   = flag.String("image", "", "Path to a JPEG or PNG photo of waste material")
		model       = flag.String("model", "", "Gemini model to use (default gemini-2.0-flash)")
		temperature = flag.Float64("temperature", 0.7, "Sampling temperature")
		timeout     = flag.Duration("timeout", 90*time.Second, "Request timeout")
		showPrompt  = flag.Bool("show-prompt", false, "Also print the visualization prompt")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	if strings.TrimSpace(*imagePath) == "" {
		log.Fatal("-image is required")
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}
	if len(data) > analyzer.MaxImageBytes {
		log.Fatalf("image exceeds %d bytes", analyzer.MaxImageBytes)
	}

	svc := analyzer.NewGeminiAnalyzer(apiKey, *model, *temperature, *timeout)
	log.Printf("analyzing %s with %s", *imagePath, svc.Fingerprint())

	result, err := svc.Analyze(context.Background(), analyzer.Item{ID: *imagePath, Data: data})
	if err != nil {
		var aerr *analyzer.Error
		if errors.As(err, &aerr) && aerr.RawText != "" {
			log.Printf("model returned unusable output:\n%s", aerr.RawText)
		}
		log.Fatalf("analysis failed: %v", err)
	}

	out, err := json.MarshalIndent(result.Blueprint, "", "  ")
	if err != nil {
		log.Fatalf("encode blueprint: %v", err)
	}
	fmt.Println(string(out))
	fmt.Printf("\nupcycle score: %d/%d\n", result.Blueprint.UpcycleScore, blueprint.MaxUpcycleScore)
	if *showPrompt {
		fmt.Printf("visualization prompt: %s\n", result.VisualizationPrompt)
	}
}
