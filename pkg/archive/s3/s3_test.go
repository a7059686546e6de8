package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/waverider/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	headErr error
	putErr  error
	puts    []*s3.PutObjectInput
	bodies  [][]byte
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestNewS3Archiver_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Archiver(ctx, S3ArchiverConfig{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3Archiver(ctx, S3ArchiverConfig{Client: &fakeS3{}})
	assert.Error(t, err)

	_, err = NewS3Archiver(ctx, S3ArchiverConfig{Client: &fakeS3{headErr: errors.New("403")}, Bucket: "b"})
	assert.ErrorContains(t, err, "failed to access bucket")
}

func TestS3Archiver_Put(t *testing.T) {
	fake := &fakeS3{}
	a, err := NewS3Archiver(context.Background(), S3ArchiverConfig{
		Client:    fake,
		Bucket:    "archive",
		KeyPrefix: "revisions/",
	})
	require.NoError(t, err)

	rev := archive.Revision{
		Key: "example.com:/docs/a.md",
		ID:  "12",
		Meta: map[string]string{
			"type":             "text/markdown",
			"Content-Encoding": "gzip",
			"digest":           "abc=",
			"author":           "jane",
		},
		Data: []byte{0x1f, 0x8b},
	}
	require.NoError(t, a.Put(context.Background(), rev))

	require.Len(t, fake.puts, 1)
	in := fake.puts[0]
	assert.Equal(t, "archive", aws.ToString(in.Bucket))
	assert.Equal(t, "revisions/example.com/docs/a.md/12", aws.ToString(in.Key))
	assert.Equal(t, "text/markdown", aws.ToString(in.ContentType))
	assert.Equal(t, "gzip", aws.ToString(in.ContentEncoding))
	assert.Equal(t, map[string]string{"digest": "abc=", "author": "jane"}, in.Metadata)
	assert.Equal(t, rev.Data, fake.bodies[0])
}

func TestS3Archiver_PutError(t *testing.T) {
	fake := &fakeS3{}
	a, err := NewS3Archiver(context.Background(), S3ArchiverConfig{Client: fake, Bucket: "b"})
	require.NoError(t, err)

	fake.putErr = errors.New("slow down")
	err = a.Put(context.Background(), archive.Revision{Key: "h:/", ID: "1"})
	assert.ErrorContains(t, err, "slow down")
}
