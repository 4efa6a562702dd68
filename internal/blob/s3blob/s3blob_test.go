package s3blob

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/blob"
)

type fakeS3 struct {
	s3iface.S3API

	objects    map[string][]byte
	lastACL    string
	rejectACLs bool
	deleted    []string
	denyDelete map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if len(k) >= len(*in.Prefix) && k[:len(*in.Prefix)] == *in.Prefix {
			page.Contents = append(page.Contents, &s3.Object{
				Key:          aws.String(k),
				Size:         aws.Int64(int64(len(v))),
				LastModified: aws.Time(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			})
		}
	}
	fn(page, true)
	return nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.rejectACLs && in.ACL != nil {
		return nil, awserr.New(errCodeACLNotSupported, "The bucket does not allow ACLs", nil)
	}
	f.lastACL = aws.StringValue(in.ACL)
	body, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectsWithContext(_ aws.Context, in *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		if f.denyDelete[*id.Key] {
			out.Errors = append(out.Errors, &s3.Error{Key: id.Key, Code: aws.String("AccessDenied"), Message: aws.String("Access Denied")})
			continue
		}
		f.deleted = append(f.deleted, *id.Key)
		delete(f.objects, *id.Key)
	}
	return out, nil
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	s := NewWithAPI(api, "dash")

	obj, err := s.Put(ctx, "kosdaqpi/latest.json", []byte(`{"a":1}`), blob.PutOptions{Access: blob.AccessPublic})
	require.NoError(t, err)
	assert.Equal(t, "s3://dash/kosdaqpi/latest.json", obj.URL)
	assert.Equal(t, s3.ObjectCannedACLPublicRead, api.lastACL)

	objs, err := s.List(ctx, "kosdaqpi/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "kosdaqpi/latest.json", objs[0].Pathname)

	body, err := s.Get(ctx, objs[0].URL)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	require.NoError(t, s.Delete(ctx, objs[0].URL))
	assert.Equal(t, []string{"kosdaqpi/latest.json"}, api.deleted)

	_, err = s.Get(ctx, objs[0].URL)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_DeleteReportsPerKeyFailures(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.denyDelete = map[string]bool{"kosdaqpi/history.json": true}
	s := NewWithAPI(api, "dash")

	for _, key := range []string{"kosdaqpi/latest.json", "kosdaqpi/history.json"} {
		_, err := s.Put(ctx, key, []byte(`{}`), blob.PutOptions{Access: blob.AccessPublic})
		require.NoError(t, err)
	}
	objs, err := s.List(ctx, "kosdaqpi/")
	require.NoError(t, err)
	urls := make([]string, 0, len(objs))
	for _, o := range objs {
		urls = append(urls, o.URL)
	}

	err = s.Delete(ctx, urls...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kosdaqpi/history.json (AccessDenied)")
	assert.NotContains(t, err.Error(), "latest.json")

	left, err := s.List(ctx, "kosdaqpi/")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "kosdaqpi/history.json", left[0].Pathname)
}

func TestStore_PutACLRejectedIsAccessMismatch(t *testing.T) {
	api := newFakeS3()
	api.rejectACLs = true
	s := NewWithAPI(api, "dash")

	_, err := s.Put(context.Background(), "kosdaqpi/latest.json", []byte(`{}`), blob.PutOptions{Access: blob.AccessPrivate})
	assert.ErrorIs(t, err, blob.ErrAccessMismatch)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
