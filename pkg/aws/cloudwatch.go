package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logFlushInterval = 2 * time.Second
	maxLogBatch      = 500
	logRetentionDays = 90
)

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client used here.
type CloudWatchLogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsWriter buffers log lines and ships them to one CloudWatch Logs
// stream in batches. It is an io.Writer for the zap tee; a disabled writer
// discards everything.
type CloudWatchLogsWriter struct {
	api    CloudWatchLogsAPI
	group  string
	stream string

	mu      sync.Mutex
	pending []types.InputLogEvent

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewCloudWatchLogsWriter returns a disabled writer unless
// CLOUDWATCH_ENABLED=true.
func NewCloudWatchLogsWriter(ctx context.Context, serviceName string) (*CloudWatchLogsWriter, error) {
	if os.Getenv("CLOUDWATCH_ENABLED") != "true" {
		return &CloudWatchLogsWriter{}, nil
	}

	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	group := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if group == "" {
		group = "/settlement/services"
	}
	stream := fmt.Sprintf("%s-%d", serviceName, time.Now().Unix())
	return StartCloudWatchLogsWriter(ctx, cloudwatchlogs.NewFromConfig(cfg), group, stream, logFlushInterval)
}

// StartCloudWatchLogsWriter prepares the group and stream and starts the
// periodic flush.
func StartCloudWatchLogsWriter(ctx context.Context, api CloudWatchLogsAPI, group, stream string, every time.Duration) (*CloudWatchLogsWriter, error) {
	w := &CloudWatchLogsWriter{
		api:    api,
		group:  group,
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := w.prepare(ctx); err != nil {
		return nil, err
	}
	go w.loop(every)
	return w, nil
}

func (w *CloudWatchLogsWriter) prepare(ctx context.Context) error {
	_, err := w.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(w.group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create log group %s: %w", w.group, err)
	}

	// Reconciliation reports point at log lines; keep them for 90 days.
	if _, err := w.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(w.group),
		RetentionInDays: aws.Int32(logRetentionDays),
	}); err != nil {
		return fmt.Errorf("set retention on %s: %w", w.group, err)
	}

	if _, err := w.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(w.group),
		LogStreamName: aws.String(w.stream),
	}); err != nil {
		return fmt.Errorf("create log stream %s: %w", w.stream, err)
	}
	return nil
}

func (w *CloudWatchLogsWriter) IsEnabled() bool {
	return w != nil && w.api != nil
}

// Write queues one line. It never fails; shipping errors go to stderr.
func (w *CloudWatchLogsWriter) Write(p []byte) (int, error) {
	if !w.IsEnabled() {
		return len(p), nil
	}

	w.mu.Lock()
	w.pending = append(w.pending, types.InputLogEvent{
		Message:   aws.String(string(p)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	})
	full := len(w.pending) >= maxLogBatch
	w.mu.Unlock()

	if full {
		w.flush()
	}
	return len(p), nil
}

// Sync flushes queued lines; zap calls it on logger.Sync.
func (w *CloudWatchLogsWriter) Sync() error {
	if w.IsEnabled() {
		w.flush()
	}
	return nil
}

// Close stops the flush loop and ships whatever is queued.
func (w *CloudWatchLogsWriter) Close() error {
	if !w.IsEnabled() {
		return nil
	}
	w.once.Do(func() {
		close(w.stop)
		<-w.done
	})
	w.flush()
	return nil
}

func (w *CloudWatchLogsWriter) loop(every time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-w.stop:
			return
		}
	}
}

func (w *CloudWatchLogsWriter) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for start := 0; start < len(batch); start += maxLogBatch {
		end := start + maxLogBatch
		if end > len(batch) {
			end = len(batch)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := w.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(w.group),
			LogStreamName: aws.String(w.stream),
			LogEvents:     batch[start:end],
		})
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "CloudWatch log shipping failed, dropped %d lines: %v\n", end-start, err)
		}
	}
}
