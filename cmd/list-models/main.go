// Command list-models prints the Gemini models available to GEMINI_API_KEY.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"google.golang.org/genai"

	"emotionai-agent/internal/config"
)

func main() {
	config.LoadDotEnv()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing GEMINI_API_KEY")
		os.Exit(2)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}

	for m, err := range client.Models.All(ctx) {
		if err != nil {
			log.Fatalf("list models: %v", err)
		}
		fmt.Printf("Model: %s\n", m.Name)
		fmt.Printf("Display name: %s\n", m.DisplayName)
		fmt.Printf("Description: %s\n", m.Description)
		fmt.Printf("Generation methods: %s\n", strings.Join(m.SupportedActions, ", "))
		fmt.Println(strings.Repeat("-", 50))
	}
}
