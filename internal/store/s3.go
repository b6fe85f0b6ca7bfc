// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Objects above this size go through the multipart uploader.
const multipartThreshold = 100 * 1024 * 1024

// Credentials carries the connection parameters for an S3-compatible
// endpoint (Ceph RGW, MinIO, AWS).
type Credentials struct {
	EndpointURL string
	Region      string
	AccessKey   string
	SecretKey   string
}

// S3Gateway implements the existence probe and per-file upload against an
// S3-compatible endpoint. Stateless after construction; safe for concurrent
// use by the upload workers.
type S3Gateway struct {
	s3  *s3.Client
	log zerolog.Logger
}

func NewS3Gateway(ctx context.Context, creds Credentials, log zerolog.Logger) (*S3Gateway, error) {
	provider := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		creds.AccessKey,
		creds.SecretKey,
		"",
	))

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(provider),
		awsconfig.WithRegion(creds.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := func(o *s3.Options) {
		if creds.EndpointURL != "" {
			o.BaseEndpoint = aws.String(creds.EndpointURL)
			o.UsePathStyle = true // required by most S3-compat backends
		}
	}

	return &S3Gateway{
		s3:  s3.NewFromConfig(cfg, s3Options),
		log: log,
	}, nil
}

// Exists reports whether at least one object key starts with prefix. The
// listing is capped to a single result: one hit is all the answer needs.
func (g *S3Gateway) Exists(ctx context.Context, bucket, prefix string) (bool, error) {
	out, err := g.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, &Error{Op: "list", Bucket: bucket, Err: err}
	}
	return len(out.Contents) > 0, nil
}

// Put uploads the file at localPath to exactly one key and returns the
// bytes written. Large files go through the multipart uploader.
func (g *S3Gateway) Put(ctx context.Context, bucket, key, localPath string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	size := info.Size()

	// Sniff the content type from the first 512 bytes, then rewind.
	header := make([]byte, 512)
	n, _ := file.Read(header)
	contentType := http.DetectContentType(header[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	if size > multipartThreshold {
		_, err = manager.NewUploader(g.s3).Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        file,
			ContentType: aws.String(contentType),
		})
	} else {
		_, err = g.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          file,
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(contentType),
		})
	}
	if err != nil {
		return 0, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	g.log.Debug().Str("key", key).Int64("bytes", size).Msg("object stored")
	return size, nil
}
