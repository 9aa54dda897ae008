package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wesleyorama2/surge/internal/request"
)

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// S3Transport issues requests through the AWS SDK. Objects map to keys and
// containers to buckets.
type S3Transport struct {
	client   *s3.Client
	throttle *Throttle
}

// NewS3Transport creates an S3 transport. A nil httpClient uses
// NewHTTPClient(DefaultHTTPConfig()). The SDK never retries: every attempt
// is a request of the test.
func NewS3Transport(ctx context.Context, cfg S3Config, httpClient *http.Client, throttle *Throttle) (*S3Transport, error) {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultHTTPConfig())
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(httpClient),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Transport{client: client, throttle: throttle}, nil
}

// Do implements Transport.
func (t *S3Transport) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	started := time.Now()
	resp := &request.Response{Started: started, StatusCode: http.StatusOK}

	var err error

	switch req.Operation {
	case request.OpWrite:
		var out *s3.PutObjectOutput
		out, err = t.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(req.Container),
			Key:           aws.String(req.Object),
			Body:          t.throttle.Reader(ctx, NewPayload(req.Size)),
			ContentLength: aws.Int64(req.Size),
		})
		if err == nil {
			resp.RequestID, _ = awsmiddleware.GetRequestIDMetadata(out.ResultMetadata)
			resp.Bytes = req.Size
		}

	case request.OpRead:
		var out *s3.GetObjectOutput
		out, err = t.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(req.Container),
			Key:    aws.String(req.Object),
		})
		if err == nil {
			resp.RequestID, _ = awsmiddleware.GetRequestIDMetadata(out.ResultMetadata)
			resp.Bytes, err = io.Copy(io.Discard, t.throttle.Reader(ctx, out.Body))
			out.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read object %s/%s: %w", req.Container, req.Object, err)
			}
		}

	case request.OpDelete:
		var out *s3.DeleteObjectOutput
		out, err = t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(req.Container),
			Key:    aws.String(req.Object),
		})
		if err == nil {
			resp.RequestID, _ = awsmiddleware.GetRequestIDMetadata(out.ResultMetadata)
			resp.StatusCode = http.StatusNoContent
		}

	case request.OpMetadata:
		var out *s3.HeadObjectOutput
		out, err = t.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(req.Container),
			Key:    aws.String(req.Object),
		})
		if err == nil {
			resp.RequestID, _ = awsmiddleware.GetRequestIDMetadata(out.ResultMetadata)
		}

	default:
		return nil, fmt.Errorf("unsupported operation %q", req.Operation)
	}

	resp.Latency = time.Since(started)

	if err != nil {
		// Service errors are answers, not client failures.
		var re *awshttp.ResponseError
		if errors.As(err, &re) {
			resp.StatusCode = re.HTTPStatusCode()
			resp.RequestID = re.ServiceRequestID()
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}
