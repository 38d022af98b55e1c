// Package config provides configuration management for the Pickwise pipeline.
package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	errLoadAWSConfig           = "failed to load AWS config: %w"
	errGetSecretFromAWSSecrets = "failed to get secret from AWS Secrets Manager: %w"
	errParseSecretJSON         = "failed to parse secret JSON: %w"
	errNoSecretDataFound       = "no secret data found in AWS Secrets Manager"
)

// SecretsOverlay represents the structure of secrets stored in AWS Secrets Manager
type SecretsOverlay struct {
	DatabasePassword string `json:"database_password"`
	OddsFeedAPIKey   string `json:"odds_feed_api_key"`
	LiveFeedToken    string `json:"live_feed_token"`
}

// fetchSecretsFromAWS retrieves secrets from AWS Secrets Manager
func fetchSecretsFromAWS(ctx context.Context, region string, secretName string) (*SecretsOverlay, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf(errLoadAWSConfig, err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	}

	result, err := client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, fmt.Errorf(errGetSecretFromAWSSecrets, err)
	}

	return parseSecretData(result)
}

// parseSecretData extracts the overlay from a Secrets Manager response
func parseSecretData(result *secretsmanager.GetSecretValueOutput) (*SecretsOverlay, error) {
	overlay := &SecretsOverlay{}

	if result.SecretString != nil {
		if err := json.Unmarshal([]byte(*result.SecretString), overlay); err != nil {
			return nil, fmt.Errorf(errParseSecretJSON, err)
		}
		return overlay, nil
	}

	if len(result.SecretBinary) > 0 {
		if err := json.Unmarshal(result.SecretBinary, overlay); err != nil {
			return nil, fmt.Errorf(errParseSecretJSON, err)
		}
		return overlay, nil
	}

	return nil, fmt.Errorf(errNoSecretDataFound)
}

// ApplySecrets overlays secret values onto the configuration. Empty overlay
// fields leave the existing (env-derived) values untouched.
func ApplySecrets(ctx context.Context, cfg *Config, region, secretName string) error {
	if secretName == "" {
		return nil
	}

	overlay, err := fetchSecretsFromAWS(ctx, region, secretName)
	if err != nil {
		return err
	}

	if overlay.DatabasePassword != "" {
		cfg.Database.Password = overlay.DatabasePassword
	}
	if overlay.OddsFeedAPIKey != "" {
		cfg.OddsFeed.APIKey = overlay.OddsFeedAPIKey
	}
	if overlay.LiveFeedToken != "" {
		cfg.LiveFeed.Token = overlay.LiveFeedToken
	}

	return nil
}
