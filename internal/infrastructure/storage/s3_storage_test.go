package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records calls and serves objects from a map
type fakeS3 struct {
	objects       map[string][]byte
	bucketExists  bool
	headErr       error
	putErr        error
	createErr     error
	puts          int
	bucketCreates int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), bucketExists: true}
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketExists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, _ *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.bucketCreates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, config.StorageConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("access key without secret returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(ctx, config.StorageConfig{Bucket: "archive", AccessKeyID: "key"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret access key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(ctx, config.StorageConfig{
			Bucket:          "archive",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Endpoint:        "localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "archive", s.Bucket())
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "", normalizeEndpoint(""))
	assert.Equal(t, "http://localhost:9000", normalizeEndpoint("localhost:9000"))
	assert.Equal(t, "https://s3.example.com", normalizeEndpoint("https://s3.example.com"))
}

func TestS3ObjectStorage_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket is left alone", func(t *testing.T) {
		api := newFakeS3()
		require.NoError(t, newS3ObjectStorage(api, "archive").EnsureBucket(ctx))
		assert.Zero(t, api.bucketCreates)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		api := newFakeS3()
		api.bucketExists = false
		require.NoError(t, newS3ObjectStorage(api, "archive").EnsureBucket(ctx))
		assert.Equal(t, 1, api.bucketCreates)
	})

	t.Run("bucket created concurrently is accepted", func(t *testing.T) {
		api := newFakeS3()
		api.bucketExists = false
		api.createErr = &types.BucketAlreadyOwnedByYou{}
		require.NoError(t, newS3ObjectStorage(api, "archive").EnsureBucket(ctx))
	})
}

func TestS3ObjectStorage_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	s := newS3ObjectStorage(api, "archive")

	written, err := s.PutIfAbsent(ctx, "snapshots/a.json", []byte(`{"v":1}`), "application/json")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.PutIfAbsent(ctx, "snapshots/a.json", []byte(`{"v":2}`), "application/json")
	require.NoError(t, err)
	assert.False(t, written)

	assert.Equal(t, 1, api.puts)
	assert.Equal(t, `{"v":1}`, string(api.objects["snapshots/a.json"]))
}

func TestS3ObjectStorage_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		s := newS3ObjectStorage(newFakeS3(), "archive")
		_, err := s.ObjectExists(ctx, "")
		require.Error(t, err)
		require.Error(t, s.Upload(ctx, "", nil, "application/json"))
	})

	t.Run("generic not found code counts as missing", func(t *testing.T) {
		api := newFakeS3()
		api.headErr = &smithy.GenericAPIError{Code: "NoSuchKey"}
		exists, err := newS3ObjectStorage(api, "archive").ObjectExists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("head failure is returned", func(t *testing.T) {
		api := newFakeS3()
		api.headErr = errors.New("connection reset")
		_, err := newS3ObjectStorage(api, "archive").PutIfAbsent(ctx, "k", nil, "application/json")
		require.Error(t, err)
		assert.Zero(t, api.puts)
	})

	t.Run("put failure is wrapped", func(t *testing.T) {
		api := newFakeS3()
		api.putErr = errors.New("denied")
		_, err := newS3ObjectStorage(api, "archive").PutIfAbsent(ctx, "k", nil, "application/json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload object")
	})
}
