package scanner

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// fakeListClient serves a fixed object list in pages of pageSize.
type fakeListClient struct {
	objects  []s3types.Object
	pageSize int
	err      error
	inputs   []*s3.ListObjectsV2Input
}

func (f *fakeListClient) ListObjectsV2(
	_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(f.objects))

	out := &s3.ListObjectsV2Output{
		Contents:    f.objects[start:end],
		IsTruncated: aws.Bool(end < len(f.objects)),
	}
	if end < len(f.objects) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func object(key string, modified time.Time) s3types.Object {
	return s3types.Object{Key: aws.String(key), LastModified: aws.Time(modified)}
}

var testWindow = window.Window{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
}

func TestS3Scanner_FiltersToWindow(t *testing.T) {
	t.Parallel()

	client := &fakeListClient{
		pageSize: 2,
		objects: []s3types.Object{
			object("drops/a.csv", testWindow.Start.Add(-time.Second)),
			object("drops/b.csv", testWindow.Start),
			object("drops/c.csv", testWindow.Start.Add(10*time.Minute)),
			object("drops/c.tmp", testWindow.Start.Add(10*time.Minute)),
			object("drops/d.csv", testWindow.End),
			object("drops/e.csv", testWindow.End.Add(time.Second)),
			{Key: aws.String("drops/no-mtime.csv")},
		},
	}

	s := NewS3Scanner(client, S3Source{Bucket: "inbox", Prefix: "drops/", Suffix: ".csv"}, nil)
	keys, err := s.Scan(context.Background(), testWindow)
	require.NoError(t, err)

	assert.Equal(t, []string{"drops/b.csv", "drops/c.csv", "drops/d.csv"}, keys)
	require.Len(t, client.inputs, 4, "expected the paginator to walk every page")
	assert.Equal(t, "inbox", aws.ToString(client.inputs[0].Bucket))
	assert.Equal(t, "drops/", aws.ToString(client.inputs[0].Prefix))
}

func TestS3Scanner_ErrorIsScanFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("access denied")
	s := NewS3Scanner(&fakeListClient{err: cause, pageSize: 1}, S3Source{Bucket: "inbox"}, nil)

	_, err := s.Scan(context.Background(), testWindow)
	require.ErrorIs(t, err, ErrScanFailure)
	require.ErrorIs(t, err, cause)

	var se *ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, testWindow, se.Window)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	slow := Func(func(ctx context.Context, _ window.Window) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Scan(context.Background(), testWindow)
	require.ErrorIs(t, err, ErrScanFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_PassesResults(t *testing.T) {
	t.Parallel()

	fast := Func(func(context.Context, window.Window) ([]string, error) {
		return []string{"a.csv"}, nil
	})

	items, err := WithTimeout(fast, time.Second).Scan(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv"}, items)

	assert.NotNil(t, WithTimeout(fast, 0))
}

func TestNewScanError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewScanError("src", testWindow, nil))

	first := NewScanError("src", testWindow, errors.New("boom"))
	again := NewScanError("outer", testWindow, first)
	assert.Same(t, first, again, "already-wrapped errors are not wrapped twice")
}
