package images

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	deletes int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v)), ContentType: aws.String("image/png")}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deletes++
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: id.Key})
	}
	return out, nil
}

func TestS3StoreDeleteProduct(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]string{}}
	s := NewS3Store(fake, "photos")

	for i := 0; i < 3; i++ {
		_, err := s.Put(ctx, "jacket", "image/png", strings.NewReader("x"))
		require.NoError(t, err)
	}
	keep, err := s.Put(ctx, "jacket-2", "image/png", strings.NewReader("y"))
	require.NoError(t, err)

	n, err := s.DeleteProduct(ctx, "jacket")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, fake.deletes)

	rc, _, err := s.Open(ctx, keep)
	require.NoError(t, err)
	rc.Close()

	n, err = s.DeleteProduct(ctx, "jacket")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestS3StoreDeleteOne(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]string{}}
	s := NewS3Store(fake, "photos")

	a, err := s.Put(ctx, "scarf", "image/png", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := s.Put(ctx, "scarf", "image/png", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a))
	_, _, err = s.Open(ctx, a)
	assert.ErrorIs(t, err, ErrNotFound)
	rc, _, err := s.Open(ctx, b)
	require.NoError(t, err)
	rc.Close()

	assert.ErrorIs(t, s.Delete(ctx, "../etc/passwd"), ErrNotFound)
}
