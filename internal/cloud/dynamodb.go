package cloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

// Table names.
const (
	ReadingsTable = "HouseholdReadings"
	AlertsTable   = "HouseholdAlerts"

	alertsByHouseholdIndex = "householdId-timestamp-index"
	batchSize              = 25 // DynamoDB batch write limit
)

// DynamoDBAPI is the subset of *dynamodb.Client used here.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBClient mirrors household readings and alerts into DynamoDB.
type DynamoDBClient struct {
	svc DynamoDBAPI
	now func() time.Time
}

// NewDynamoDBClient creates a client from the default AWS configuration.
func NewDynamoDBClient(ctx context.Context, region string) (*DynamoDBClient, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewDynamoDBClientWithAPI(dynamodb.NewFromConfig(cfg)), nil
}

func NewDynamoDBClientWithAPI(api DynamoDBAPI) *DynamoDBClient {
	return &DynamoDBClient{svc: api, now: time.Now}
}

// Reading represents the DynamoDB structure for a live reading.
type Reading struct {
	HouseholdID  string  `dynamodbav:"householdId"`
	Timestamp    int64   `dynamodbav:"timestamp"`
	CurrentUsage float64 `dynamodbav:"currentUsageW"`
	Voltage      float64 `dynamodbav:"voltage"`
	Frequency    float64 `dynamodbav:"frequency"`
	PowerFactor  float64 `dynamodbav:"powerFactor"`
}

func toItem(household string, r domain.LiveReading) Reading {
	return Reading{
		HouseholdID:  household,
		Timestamp:    r.Timestamp.UnixMilli(),
		CurrentUsage: r.CurrentUsage,
		Voltage:      r.Voltage,
		Frequency:    r.Frequency,
		PowerFactor:  r.PowerFactor,
	}
}

// BatchPutReadings stores readings in chunks of 25.
func (c *DynamoDBClient) BatchPutReadings(ctx context.Context, household string, readings []domain.LiveReading) error {
	for i := 0; i < len(readings); i += batchSize {
		batch := readings[i:min(i+batchSize, len(readings))]
		writeRequests := make([]types.WriteRequest, len(batch))
		for j, r := range batch {
			item, err := attributevalue.MarshalMap(toItem(household, r))
			if err != nil {
				return fmt.Errorf("failed to marshal reading %d: %w", i+j, err)
			}
			writeRequests[j] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
		}

		_, err := c.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{ReadingsTable: writeRequests},
		})
		if err != nil {
			return fmt.Errorf("failed to batch write items: %w", err)
		}
	}
	return nil
}

// GetRecentReadings returns readings newer than now-window.
func (c *DynamoDBClient) GetRecentReadings(ctx context.Context, household string, window time.Duration) ([]domain.LiveReading, error) {
	start := c.now().Add(-window).UnixMilli()
	result, err := c.svc.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(ReadingsTable),
		KeyConditionExpression: aws.String("householdId = :hid AND #ts > :start"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hid":   &types.AttributeValueMemberS{Value: household},
			":start": &types.AttributeValueMemberN{Value: strconv.FormatInt(start, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	var items []Reading
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal readings: %w", err)
	}
	out := make([]domain.LiveReading, len(items))
	for i, it := range items {
		out[i] = domain.LiveReading{
			CurrentUsage: it.CurrentUsage,
			Voltage:      it.Voltage,
			Frequency:    it.Frequency,
			PowerFactor:  it.PowerFactor,
			Timestamp:    time.UnixMilli(it.Timestamp),
		}
	}
	return out, nil
}

// Alert represents an alert stored in DynamoDB.
type Alert struct {
	AlertID      string `dynamodbav:"alertId" json:"alert_id"`
	HouseholdID  string `dynamodbav:"householdId" json:"household_id"`
	Timestamp    int64  `dynamodbav:"timestamp" json:"timestamp"`
	Severity     string `dynamodbav:"severity" json:"severity"`
	Type         string `dynamodbav:"type" json:"type"`
	Message      string `dynamodbav:"message" json:"message"`
	Acknowledged bool   `dynamodbav:"acknowledged" json:"acknowledged"`
	DeviceID     string `dynamodbav:"deviceId,omitempty" json:"device_id,omitempty"`
}

// CreateAlert stores a new alert and returns its generated id.
func (c *DynamoDBClient) CreateAlert(ctx context.Context, household, deviceID, severity, alertType, message string) (string, error) {
	alert := Alert{
		AlertID:     uuid.NewString(),
		HouseholdID: household,
		Timestamp:   c.now().Unix(),
		Severity:    severity,
		Type:        alertType,
		Message:     message,
		DeviceID:    deviceID,
	}
	item, err := attributevalue.MarshalMap(alert)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert: %w", err)
	}
	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(AlertsTable),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create alert: %w", err)
	}
	return alert.AlertID, nil
}

// GetAlerts lists a household's alerts newest first, optionally by severity.
func (c *DynamoDBClient) GetAlerts(ctx context.Context, household string, severity *string) ([]Alert, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(AlertsTable),
		IndexName:              aws.String(alertsByHouseholdIndex),
		KeyConditionExpression: aws.String("householdId = :hid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hid": &types.AttributeValueMemberS{Value: household},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if severity != nil {
		input.FilterExpression = aws.String("severity = :sev")
		input.ExpressionAttributeValues[":sev"] = &types.AttributeValueMemberS{Value: *severity}
	}

	result, err := c.svc.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	var alerts []Alert
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert marks an alert as acknowledged.
func (c *DynamoDBClient) AcknowledgeAlert(ctx context.Context, alertID string) error {
	_, err := c.svc.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(AlertsTable),
		Key: map[string]types.AttributeValue{
			"alertId": &types.AttributeValueMemberS{Value: alertID},
		},
		UpdateExpression: aws.String("SET acknowledged = :ack, acknowledgedAt = :time"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ack":  &types.AttributeValueMemberBOOL{Value: true},
			":time": &types.AttributeValueMemberN{Value: strconv.FormatInt(c.now().Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return nil
}
