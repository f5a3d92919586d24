package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

type fakeS3 struct {
	headErr  error
	created  *s3.CreateBucketInput
	putInput *s3.PutObjectInput
	body     []byte
	putErr   error
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = in
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putInput = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	c := newClient(&fakeS3{}, config.ArchiveConfig{Bucket: "b", Prefix: "/webhooks/"})
	at := time.Date(2026, 2, 9, 23, 0, 0, 0, time.FixedZone("JST", 9*3600))
	assert.Equal(t, "webhooks/stripe/2026/02/evt_1.json", c.ObjectKey("evt_1", at))

	c = newClient(&fakeS3{}, config.ArchiveConfig{Bucket: "b"})
	assert.Equal(t, "stripe/2026/02/evt_1.json", c.ObjectKey("evt_1", at))
}

func TestArchiveWebhook(t *testing.T) {
	api := &fakeS3{}
	c := newClient(api, config.ArchiveConfig{Bucket: "hooks", Prefix: "webhooks"})

	err := c.ArchiveWebhook(context.Background(), "evt_1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), []byte(`{"id":"evt_1"}`))
	require.NoError(t, err)
	assert.Equal(t, "hooks", aws.ToString(api.putInput.Bucket))
	assert.Equal(t, "webhooks/stripe/2026/05/evt_1.json", aws.ToString(api.putInput.Key))
	assert.Equal(t, `{"id":"evt_1"}`, string(api.body))

	api.putErr = errors.New("denied")
	assert.Error(t, c.ArchiveWebhook(context.Background(), "evt_2", time.Now(), []byte(`{}`)))
}

func TestEnsureBucket(t *testing.T) {
	api := &fakeS3{headErr: errors.New("not found")}
	c := newClient(api, config.ArchiveConfig{Bucket: "hooks", Region: "eu-central-1"})

	require.Error(t, c.ensureBucket(context.Background(), false))
	assert.Nil(t, api.created)

	require.NoError(t, c.ensureBucket(context.Background(), true))
	require.NotNil(t, api.created)
	require.NotNil(t, api.created.CreateBucketConfiguration)
	assert.EqualValues(t, "eu-central-1", api.created.CreateBucketConfiguration.LocationConstraint)
}
