package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"vidasync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

// s3LookupConcurrency caps parallel GetObject calls for one lookup.
const s3LookupConcurrency = 8

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps one JSON object per ingredient key. Writes are conditional, so the first row
// written for a key is the one every later lookup sees.
type S3Store struct {
	bucket string
	prefix string
	s3     s3API
}

func NewS3Store(s3Client s3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		bucket: bucket,
		prefix: prefix,
		s3:     s3Client,
	}
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + url.PathEscape(key) + ".json"
}

func (s *S3Store) Lookup(ctx context.Context, keys []string) ([]vidasync.CacheEntry, error) {
	found := make([]*vidasync.CacheEntry, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3LookupConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			e, err := s.get(gctx, k)
			if err != nil {
				return err
			}
			found[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []vidasync.CacheEntry
	for _, e := range found {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *S3Store) get(ctx context.Context, key string) (*vidasync.CacheEntry, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache object %q from S3: %w", key, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cache object %q: %w", key, err)
	}
	var e vidasync.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode cache object %q: %w", key, err)
	}
	return &e, nil
}

func (s *S3Store) Insert(ctx context.Context, entry vidasync.CacheEntry) error {
	e := stamp(entry)
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(string(e.IngredientKey))),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			// another writer got there first; its row stands
			return nil
		}
		return fmt.Errorf("failed to put cache object %q to S3: %w", e.IngredientKey, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
