package bucket

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

// DefaultRegion is assumed when neither the request nor the bucket's
// location constraint names one.
const DefaultRegion = "us-east-1"

// S3Validator verifies bucket existence and access against the S3 API.
type S3Validator struct {
	// newClient builds an S3 client for a region and credentials. Tests
	// replace it; production uses the real SDK session.
	newClient func(region string, creds types.Credentials) (s3API, error)
}

// s3API is the slice of the S3 surface the validator touches.
type s3API interface {
	HeadBucketWithContext(ctx aws.Context, input *s3.HeadBucketInput, opts ...request.Option) (*s3.HeadBucketOutput, error)
	GetBucketLocationWithContext(ctx aws.Context, input *s3.GetBucketLocationInput, opts ...request.Option) (*s3.GetBucketLocationOutput, error)
}

// NewS3Validator creates the production validator.
func NewS3Validator() *S3Validator {
	return &S3Validator{newClient: newS3Client}
}

func newS3Client(region string, creds types.Credentials) (s3API, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if !creds.Empty() {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build S3 session: %w", err)
	}
	return s3.New(sess), nil
}

// Validate checks syntax, then asks S3 whether the bucket exists and the
// credentials reach it. It returns the bucket's effective region: the
// location constraint when discoverable, otherwise the requested region,
// otherwise DefaultRegion.
func (v *S3Validator) Validate(ctx context.Context, name, region string, creds types.Credentials) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if region == "" {
		region = DefaultRegion
	}
	if skipRemoteCheck(creds) {
		log.WithComponent("bucket").Debug().
			Str("bucket", name).
			Msg("Placeholder credentials, skipping remote bucket check")
		return region, nil
	}

	client, err := v.newClient(region, creds)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrInvalidBucket, err)
	}

	if _, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		return "", fmt.Errorf("%w: bucket %q: %s", errdefs.ErrInvalidBucket, name, headBucketReason(err))
	}

	// Best-effort region discovery; the attach still works with the
	// requested region if this call is not permitted.
	loc, err := client.GetBucketLocationWithContext(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		log.WithComponent("bucket").Debug().Err(err).
			Str("bucket", name).
			Msg("Could not read bucket location, keeping requested region")
		return region, nil
	}
	if actual := locationRegion(loc); actual != "" && actual != region {
		log.WithComponent("bucket").Info().
			Str("bucket", name).
			Str("requested", region).
			Str("actual", actual).
			Msg("Adopting bucket's actual region")
		return actual, nil
	}
	return region, nil
}

// headBucketReason turns SDK errors into the short reasons surfaced to
// clients.
func headBucketReason(err error) string {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, "NotFound":
			return "does not exist"
		case "Forbidden", "AccessDenied":
			return "access denied with the supplied credentials"
		default:
			return fmt.Sprintf("not reachable (%s)", aerr.Code())
		}
	}
	return fmt.Sprintf("not reachable (%v)", err)
}

// locationRegion maps a GetBucketLocation result to a region name. S3
// reports an empty constraint for us-east-1.
func locationRegion(out *s3.GetBucketLocationOutput) string {
	if out == nil || out.LocationConstraint == nil || *out.LocationConstraint == "" {
		return DefaultRegion
	}
	return *out.LocationConstraint
}
