package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/config"
)

func TestLoadAWSConfigRequiresConfig(t *testing.T) {
	if _, err := LoadAWSConfig(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "eu-west-1",
		AWSAccessKeyID:      "local-key",
		AWSSecretAccessKey:  "local-secret",
		AWSEndpointOverride: " http://localhost:4566 ",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Fatalf("expected region eu-west-1, got %q", awsCfg.Region)
	}
	if got := aws.ToString(awsCfg.BaseEndpoint); got != "http://localhost:4566" {
		t.Fatalf("expected LocalStack endpoint, got %q", got)
	}
	if awsCfg.AppID != appID {
		t.Fatalf("expected app id %q, got %q", appID, awsCfg.AppID)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "local-key" || creds.SecretAccessKey != "local-secret" {
		t.Fatalf("expected static credentials, got %q", creds.AccessKeyID)
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.BaseEndpoint != nil {
		t.Fatalf("expected default endpoint resolution, got %q", aws.ToString(awsCfg.BaseEndpoint))
	}
}
