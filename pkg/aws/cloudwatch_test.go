package aws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	mu        sync.Mutex
	groupErr  error
	streams   []string
	retention int32
	batches   [][]types.InputLogEvent
}

func (f *fakeLogs) CreateLogGroup(_ context.Context, _ *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogs) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.retention = *in.RetentionInDays
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(_ context.Context, in *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streams = append(f.streams, *in.LogStreamName)
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, in.LogEvents)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func (f *fakeLogs) shipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCloudWatchLogsWriter_BatchesUntilSync(t *testing.T) {
	api := &fakeLogs{}
	w, err := StartCloudWatchLogsWriter(context.Background(), api, "/settlement/test", "settlement-1", time.Hour)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{"settlement-1"}, api.streams)
	assert.Equal(t, int32(logRetentionDays), api.retention)

	for i := 0; i < 3; i++ {
		n, err := w.Write([]byte("line\n"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}
	assert.Zero(t, api.shipped())

	require.NoError(t, w.Sync())
	assert.Equal(t, 3, api.shipped())
	assert.Len(t, api.batches, 1)
}

func TestCloudWatchLogsWriter_FlushesFullBatch(t *testing.T) {
	api := &fakeLogs{}
	w, err := StartCloudWatchLogsWriter(context.Background(), api, "/g", "s", time.Hour)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < maxLogBatch; i++ {
		_, _ = w.Write([]byte("x"))
	}
	assert.Equal(t, maxLogBatch, api.shipped())
}

func TestCloudWatchLogsWriter_CloseShipsPending(t *testing.T) {
	api := &fakeLogs{}
	w, err := StartCloudWatchLogsWriter(context.Background(), api, "/g", "s", time.Hour)
	require.NoError(t, err)

	_, _ = w.Write([]byte("last words"))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, api.shipped())
}

func TestCloudWatchLogsWriter_ExistingGroupIsFine(t *testing.T) {
	api := &fakeLogs{groupErr: &types.ResourceAlreadyExistsException{}}
	w, err := StartCloudWatchLogsWriter(context.Background(), api, "/g", "s", time.Hour)
	require.NoError(t, err)
	defer w.Close()
	assert.True(t, w.IsEnabled())
}

func TestCloudWatchLogsWriter_GroupError(t *testing.T) {
	api := &fakeLogs{groupErr: errors.New("AccessDenied")}
	_, err := StartCloudWatchLogsWriter(context.Background(), api, "/g", "s", time.Hour)
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestCloudWatchLogsWriter_Disabled(t *testing.T) {
	w := &CloudWatchLogsWriter{}
	n, err := w.Write([]byte("dropped"))
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, w.Sync())
	assert.NoError(t, w.Close())
}
