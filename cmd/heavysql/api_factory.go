package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/heavysql/internal/api"
	"github.com/ShayCichocki/heavysql/internal/config"
)

// createClient builds the model client from configuration. Direct API access
// needs a key; Bedrock uses the AWS credential chain.
func createClient(cfg *config.Config) (*api.Client, error) {
	key, err := config.Credentials(cfg)
	if err != nil {
		return nil, err
	}

	var breaker *api.Breaker
	if cfg.Breaker.MaxFailures > 0 {
		breaker = api.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		MaxRetries:    cfg.Anthropic.MaxRetries,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		Breaker:       breaker,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
