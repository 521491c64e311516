package metrics

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "BeatForge/API"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// PutMetricDataAPI is the slice of the CloudWatch client used here.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      PutMetricDataAPI
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client. Metrics are only
// shipped in production; elsewhere every Record call is a no-op.
func NewClient(ctx context.Context, environment string) *Client {
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{environment: environment}
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{environment: environment}
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)
	return NewClientWithAPI(cloudwatch.NewFromConfig(cfg), environment)
}

// NewClientWithAPI creates an enabled client on top of api.
func NewClientWithAPI(api PutMetricDataAPI, environment string) *Client {
	return &Client{client: api, enabled: true, environment: environment}
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	go func() {
		metricName := "APIRequests"
		if statusCode >= httpStatusServerError {
			metricName = "APIErrors"
		}
		dimensions := m.dimensions("Endpoint", endpoint)

		m.put(metricName, 1, types.StandardUnitCount, dimensions)
		m.put("APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
	}()
}

// RecordGenerationDuration records generation request duration
func (m *Client) RecordGenerationDuration(style string, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	go func() {
		dimensions := m.dimensions("Success", strconv.FormatBool(success), "Style", style)
		m.put("GenerationDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
	}()
}

// RecordModelLoad records model load latency
func (m *Client) RecordModelLoad(model string, latency time.Duration, success bool) {
	if !m.enabled {
		return
	}

	go func() {
		dimensions := m.dimensions("Model", model, "Success", strconv.FormatBool(success))
		m.put("ModelLoadLatency", float64(latency.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
	}()
}

// dimensions builds name/value pairs plus the environment dimension.
func (m *Client) dimensions(pairs ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(pairs)/2+1)
	for i := 0; i+1 < len(pairs); i += 2 {
		dims = append(dims, types.Dimension{
			Name:  aws.String(pairs[i]),
			Value: aws.String(pairs[i+1]),
		})
	}
	return append(dims, types.Dimension{
		Name:  aws.String("Environment"),
		Value: aws.String(m.environment),
	})
}

func (m *Client) put(metricName string, value float64, unit types.StandardUnit, dimensions []types.Dimension) {
	if err := m.putMetric(metricName, value, unit, dimensions); err != nil {
		log.Printf("Failed to record %s metric: %v", metricName, err)
	}
}

// putMetric sends a metric to CloudWatch
func (m *Client) putMetric(metricName string, value float64, unit types.StandardUnit, dimensions []types.Dimension) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})
	return err
}
