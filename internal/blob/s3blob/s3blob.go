// Package s3blob stores dashboard objects in an S3 (or S3-compatible) bucket.
// Object ACLs stand in for the access class: public maps to public-read, private to private.
package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"
)

// Buckets with "bucket owner enforced" object ownership reject ACLs with this code.
const errCodeACLNotSupported = "AccessControlListNotSupported"

const deleteBatch = 1000

// Config describes the bucket to use.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// Store implements blob.Store on top of an S3 bucket.
type Store struct {
	api    s3iface.S3API
	bucket string
}

// New opens a session from the standard AWS environment (credentials chain, AWS_REGION)
// and binds the store to cfg.Bucket.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	return NewWithAPI(s3.New(sess), cfg.Bucket), nil
}

// NewWithAPI binds the store to an existing S3 client.
func NewWithAPI(api s3iface.S3API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

func (s *Store) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	var out []blob.Object
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, o := range page.Contents {
			key := aws.StringValue(o.Key)
			out = append(out, blob.Object{
				Pathname:   key,
				URL:        s.url(key),
				Size:       aws.Int64Value(o.Size),
				UploadedAt: aws.TimeValue(o.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "list s3 objects")
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, url string) ([]byte, error) {
	key := s.key(url)
	res, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.Wrap(blob.ErrNotFound, key)
		}
		return nil, errors.Wrapf(err, "get s3 object %s", key)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read s3 object %s", key)
	}
	return body, nil
}

func (s *Store) Put(ctx context.Context, pathname string, body []byte, opts blob.PutOptions) (blob.Object, error) {
	key := pathname
	if opts.AddRandomSuffix {
		key = blob.Suffixed(pathname, uuid.NewString()[:8])
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	switch opts.Access {
	case blob.AccessPublic:
		in.ACL = aws.String(s3.ObjectCannedACLPublicRead)
	case blob.AccessPrivate:
		in.ACL = aws.String(s3.ObjectCannedACLPrivate)
	}

	if _, err := s.api.PutObjectWithContext(ctx, in); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == errCodeACLNotSupported {
			return blob.Object{}, errors.Wrap(blob.ErrAccessMismatch, aerr.Message())
		}
		return blob.Object{}, errors.Wrapf(err, "put s3 object %s", key)
	}

	return blob.Object{
		Pathname: key,
		URL:      s.url(key),
		Size:     int64(len(body)),
	}, nil
}

func (s *Store) Delete(ctx context.Context, urls ...string) error {
	for start := 0; start < len(urls); start += deleteBatch {
		end := start + deleteBatch
		if end > len(urls) {
			end = len(urls)
		}

		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, u := range urls[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(s.key(u))})
		}

		out, err := s.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrap(err, "delete s3 objects")
		}
		if len(out.Errors) > 0 {
			return deleteErrors(out.Errors)
		}
	}
	return nil
}

// deleteErrors reports the keys a multi-object delete could not remove.
func deleteErrors(failed []*s3.Error) error {
	keys := make([]string, 0, len(failed))
	for _, e := range failed {
		keys = append(keys, aws.StringValue(e.Key)+" ("+aws.StringValue(e.Code)+")")
	}
	return errors.Errorf("delete s3 objects: %d not deleted: %s", len(failed), strings.Join(keys, ", "))
}

func (s *Store) url(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *Store) key(url string) string {
	return strings.TrimPrefix(url, "s3://"+s.bucket+"/")
}
