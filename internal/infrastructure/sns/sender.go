package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-market-notify/internal/domain"
)

// Publisher is the subset of the SNS client the sender needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushSender delivers messages to SNS platform endpoints. A device token is the endpoint ARN.
type PushSender struct {
	client Publisher
}

// NewClient creates an SNS client. When endpointURL is set (LocalStack),
// it overrides the endpoint.
func NewClient(awsCfg aws.Config, endpointURL string) *sns.Client {
	clientOpts := []func(*sns.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...)
}

func NewPushSender(client Publisher) *PushSender {
	return &PushSender{client: client}
}

// Send publishes msg to every token. It tries every token and returns the joined failures.
func (s *PushSender) Send(ctx context.Context, tokens []string, msg domain.Message) error {
	payload, err := messageStructure(msg)
	if err != nil {
		return err
	}
	var errs []error
	for _, arn := range tokens {
		_, err := s.client.Publish(ctx, &sns.PublishInput{
			TargetArn:        aws.String(arn),
			Message:          aws.String(payload),
			MessageStructure: aws.String("json"),
		})
		if err != nil {
			slog.Warn("push publish failed", "endpoint", arn, "err", err)
			errs = append(errs, fmt.Errorf("publish %s: %w", arn, err))
		}
	}
	return errors.Join(errs...)
}

type apnsPayload struct {
	APS struct {
		Alert domain.Message `json:"alert"`
		Sound string         `json:"sound"`
	} `json:"aps"`
}

type gcmPayload struct {
	Notification domain.Message `json:"notification"`
}

// messageStructure renders the per-platform JSON document SNS expects with MessageStructure=json.
func messageStructure(msg domain.Message) (string, error) {
	var apns apnsPayload
	apns.APS.Alert = msg
	apns.APS.Sound = "default"
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}
	gcmJSON, err := json.Marshal(gcmPayload{Notification: msg})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}
	doc, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcmJSON),
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
	})
	if err != nil {
		return "", fmt.Errorf("marshal message structure: %w", err)
	}
	return string(doc), nil
}
