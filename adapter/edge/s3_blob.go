// Package edge implements the cloud-hosted storage adapters: an S3 (or
// Azure/GCS) blob backend, a DynamoDB-backed KV store, and a
// deterministic-hash-routed channel coordinator pool, grounded on the
// session/client-per-call pattern used for the AWS cloud provider.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package edge

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/NVIDIA/storegate/adapter"
)

// S3Blob implements adapter.Blob against one S3 bucket.
type S3Blob struct {
	svc    *s3.S3
	bucket string
}

func NewS3Blob(region, bucket string) (*S3Blob, error) {
	sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
	if err != nil {
		return nil, err
	}
	conf := &aws.Config{}
	if region != "" {
		conf.Region = aws.String(region)
	}
	return &S3Blob{svc: s3.New(sess, conf), bucket: bucket}, nil
}

func s3NotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}

func (b *S3Blob) Get(ctx context.Context, key string, rng *adapter.ByteRange) (*adapter.BlobObject, bool, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)}
	if rng != nil {
		in.Range = aws.String(formatRange(rng))
	}
	out, err := b.svc.GetObjectWithContext(ctx, in)
	if err != nil {
		if s3NotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &adapter.BlobObject{
		Body: out.Body,
		ETag: aws.StringValue(out.ETag),
		Size: aws.Int64Value(out.ContentLength),
	}, true, nil
}

func formatRange(r *adapter.ByteRange) string {
	if r.Offset < 0 {
		return fmt.Sprintf("bytes=%d", r.Offset)
	}
	if r.Length < 0 {
		return fmt.Sprintf("bytes=%d-", r.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
}

func (b *S3Blob) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	uploader := s3manager.NewUploaderWithClient(b.svc)
	_, err := uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

func (b *S3Blob) Delete(ctx context.Context, key string) error {
	_, err := b.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (b *S3Blob) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *S3Blob) List(ctx context.Context, prefix, cursor string) ([]string, string, error) {
	in := &s3.ListObjectsInput{Bucket: aws.String(b.bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if cursor != "" {
		in.Marker = aws.String(cursor)
	}
	out, err := b.svc.ListObjectsWithContext(ctx, in)
	if err != nil {
		return nil, "", err
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.StringValue(obj.Key))
	}
	next := ""
	if aws.BoolValue(out.IsTruncated) && len(keys) > 0 {
		next = keys[len(keys)-1]
	}
	return keys, next, nil
}

// PresignPut returns a native S3 presigned PUT URL valid for expiresIn,
// using Request.Presign rather than a home-grown signer.
func (b *S3Blob) PresignPut(key, contentType string, expiresIn time.Duration) (string, error) {
	req, _ := b.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	return req.Presign(expiresIn)
}

// PresignGet returns a native S3 presigned GET URL valid for expiresIn.
func (b *S3Blob) PresignGet(key string, expiresIn time.Duration) (string, error) {
	req, _ := b.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return req.Presign(expiresIn)
}
