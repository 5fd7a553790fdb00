// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const MaxPutSize = 8 * 1024 * 1024

type S3Opts struct {
	Bucket  string
	Region  string
	Profile string
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ Store = (*S3Store)(nil)

// LoadAWSConfig loads the default aws config, optionally pinned to a shared
// profile and region.
func LoadAWSConfig(ctx context.Context, region string, profile string) (aws.Config, error) {
	optfns := []func(*config.LoadOptions) error{}
	if profile != "" {
		optfns = append(optfns, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		optfns = append(optfns, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, optfns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading aws config: %w", err)
	}
	return cfg, nil
}

func NewS3Store(ctx context.Context, opts S3Opts) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blob backend requires a bucket")
	}
	cfg, err := LoadAWSConfig(ctx, opts.Region, opts.Profile)
	if err != nil {
		return nil, err
	}
	return NewS3StoreFromConfig(cfg, opts.Bucket), nil
}

func NewS3StoreFromConfig(cfg aws.Config, bucket string, optFns ...func(*s3.Options)) *S3Store {
	client := s3.NewFromConfig(cfg, optFns...)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

func (s *S3Store) Name() string {
	return "s3"
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		code := apiError.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func (s *S3Store) wrapErr(op string, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("blob %s: %w", key, ErrNotExist)
	}
	return fmt.Errorf("s3 %s %s/%s: %w", op, s.bucket, key, err)
}

func (s *S3Store) Put(ctx context.Context, blobPath string, r io.Reader, contentType string) error {
	key, err := CleanPath(blobPath)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxPutSize+1))
	if err != nil {
		return err
	}
	if len(data) > MaxPutSize {
		return fmt.Errorf("blob %s exceeds %d bytes", key, MaxPutSize)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err = s.client.PutObject(ctx, input)
	if err != nil {
		return s.wrapErr("put", key, err)
	}
	return nil
}

func (s *S3Store) Stat(ctx context.Context, blobPath string) (*ObjectInfo, error) {
	key, err := CleanPath(blobPath)
	if err != nil {
		return nil, err
	}
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrapErr("head", key, err)
	}
	info := &ObjectInfo{
		Path:        key,
		Size:        aws.ToInt64(result.ContentLength),
		ContentType: aws.ToString(result.ContentType),
	}
	if result.LastModified != nil {
		info.ModTime = *result.LastModified
	}
	return info, nil
}

func (s *S3Store) Open(ctx context.Context, blobPath string) (io.ReadCloser, *ObjectInfo, error) {
	key, err := CleanPath(blobPath)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, s.wrapErr("get", key, err)
	}
	info := &ObjectInfo{
		Path:        key,
		Size:        aws.ToInt64(result.ContentLength),
		ContentType: aws.ToString(result.ContentType),
	}
	if result.LastModified != nil {
		info.ModTime = *result.LastModified
	}
	return result.Body, info, nil
}

func (s *S3Store) Delete(ctx context.Context, blobPath string) error {
	key, err := CleanPath(blobPath)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.wrapErr("delete", key, err)
	}
	return nil
}

// SignedURL presigns a GetObject request after checking the object exists.
func (s *S3Store) SignedURL(ctx context.Context, blobPath string, ttl time.Duration) (string, error) {
	info, err := s.Stat(ctx, blobPath)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(info.Path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		log.Printf("[blobstore] presign %s/%s failed: %v\n", s.bucket, info.Path, err)
		return "", s.wrapErr("presign", info.Path, err)
	}
	return req.URL, nil
}
