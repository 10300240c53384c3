package aws

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// PutMetricData accepts at most this many data points per call.
const maxDataPerPut = 1000

// Datum is one metric data point.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// Count is a single occurrence of name.
func Count(name string, dims map[string]string) Datum {
	return Datum{Name: name, Value: 1, Unit: types.StandardUnitCount, Dimensions: dims}
}

// Value is a unitless measurement, used for amounts such as credits charged.
func Value(name string, v float64, dims map[string]string) Datum {
	return Datum{Name: name, Value: v, Unit: types.StandardUnitNone, Dimensions: dims}
}

// Latency is a duration recorded in milliseconds.
func Latency(name string, d time.Duration, dims map[string]string) Datum {
	return Datum{Name: name, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dims}
}

// MetricsRecorder is the part of MetricsClient that business code depends on.
type MetricsRecorder interface {
	Record(ctx context.Context, data ...Datum) error
	IsEnabled() bool
}

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient pushes data points to a CloudWatch namespace. A nil or
// disabled client drops everything.
type MetricsClient struct {
	client    CloudWatchAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

// NewMetricsClient builds a client from the environment. CLOUDWATCH_ENABLED
// must be "true" for anything to be sent.
func NewMetricsClient(ctx context.Context) (*MetricsClient, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	namespace := os.Getenv("CLOUDWATCH_NAMESPACE")
	if namespace == "" {
		namespace = "BulkSettlement"
	}
	return NewMetricsClientWithAPI(cloudwatch.NewFromConfig(cfg), namespace, os.Getenv("CLOUDWATCH_ENABLED") == "true"), nil
}

func NewMetricsClientWithAPI(api CloudWatchAPI, namespace string, enabled bool) *MetricsClient {
	return &MetricsClient{client: api, namespace: namespace, enabled: enabled, now: time.Now}
}

// Record sends the data points in as few PutMetricData calls as possible.
// All points share one timestamp.
func (m *MetricsClient) Record(ctx context.Context, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	ts := aws.Time(m.now())
	datums := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		datums = append(datums, types.MetricDatum{
			MetricName: aws.String(d.Name),
			Value:      aws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  ts,
			Dimensions: toDimensions(d.Dimensions),
		})
	}

	for start := 0; start < len(datums); start += maxDataPerPut {
		end := start + maxDataPerPut
		if end > len(datums) {
			end = len(datums)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: datums[start:end],
		})
		if err != nil {
			return fmt.Errorf("put %d metrics to %s: %w", end-start, m.namespace, err)
		}
	}
	return nil
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// toDimensions sorts by name so identical dimension sets produce identical
// requests.
func toDimensions(dims map[string]string) []types.Dimension {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		out = append(out, types.Dimension{Name: aws.String(k), Value: aws.String(dims[k])})
	}
	return out
}

const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Settlement metrics
	MetricBulkRunsSucceeded  = "BulkRunsSucceeded"
	MetricBulkRunsAborted    = "BulkRunsAborted"
	MetricBulkRunsRolledBack = "BulkRunsRolledBack"
	MetricBulkRunOrphans     = "BulkRunOrphans"
	MetricBulkRunCharged     = "BulkRunCharged"
	MetricBulkRunRows        = "BulkRunRows"

	MetricSQSMessages = "SQSMessagesProcessed"
)
