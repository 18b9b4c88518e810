package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// SNSAPI is the subset of *sns.Client used here.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient sends household notifications to a topic.
type SNSClient struct {
	svc      SNSAPI
	topicArn string
	now      func() time.Time
}

// NewSNSClient creates a client from the default AWS configuration.
func NewSNSClient(ctx context.Context, region, topicArn string) (*SNSClient, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(cfg), topicArn), nil
}

func NewSNSClientWithAPI(api SNSAPI, topicArn string) *SNSClient {
	return &SNSClient{svc: api, topicArn: topicArn, now: time.Now}
}

// SendAlert publishes subject and message to the topic.
func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	result, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Debug().Str("message_id", aws.ToString(result.MessageId)).Msg("alert sent")
	return nil
}

// SendAnomalyAlert notifies about an anomaly raised by the household.
func (c *SNSClient) SendAnomalyAlert(ctx context.Context, household, text string, usageW float64) error {
	subject := fmt.Sprintf("Household Energy Alert: %s", household)
	message := fmt.Sprintf(
		"Anomaly Detected\n\n"+
			"Household: %s\n"+
			"Detail: %s\n"+
			"Current usage: %.0f W\n"+
			"Time: %s",
		household,
		text,
		usageW,
		c.now().Format(time.RFC3339),
	)
	return c.SendAlert(ctx, subject, message)
}

// SendMaintenanceAlert notifies that an appliance is due for service.
func (c *SNSClient) SendMaintenanceAlert(ctx context.Context, deviceName string, risk30d float64, nextService time.Time) error {
	message := fmt.Sprintf(
		"Appliance Maintenance Recommended\n\n"+
			"Appliance: %s\n"+
			"Failure risk (30 days): %.1f%%\n"+
			"Next service date: %s",
		deviceName,
		risk30d*100,
		nextService.Format("2006-01-02"),
	)
	return c.SendAlert(ctx, "Predictive Maintenance Alert", message)
}

// SendBatchAlerts sends several alerts in one notification.
func (c *SNSClient) SendBatchAlerts(ctx context.Context, alerts []string) error {
	if len(alerts) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Multiple Alerts Detected:\n\n")
	for i, a := range alerts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	return c.SendAlert(ctx, fmt.Sprintf("Household Energy: %d Alerts", len(alerts)), b.String())
}
