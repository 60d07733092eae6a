/*
Package bucket validates the object-storage bucket a workspace gets bound
to.

Assignment binds exactly one bucket to a workspace, and a bad bucket name
or unreachable bucket should fail the request before any container is
touched. Validation runs in two stages:

Syntax:
  - 3 to 63 characters
  - lowercase alphanumerics plus '.' and '-'
  - first and last characters alphanumeric

Remote:
  - HeadBucket with the supplied credentials proves existence and access
  - GetBucketLocation discovers the bucket's actual region; when it
    differs from the requested one, the actual region wins and flows into
    the workspace environment (an empty location constraint is us-east-1)
  - The location lookup is best-effort; a denied GetBucketLocation keeps
    the requested region

All failures wrap errdefs.ErrInvalidBucket and map to 400 at the API.

# Development Bypass

Local setups run without any object store. Access key ids "dummy" and
"test" (any casing) skip the remote stage entirely: syntax still applies,
the requested region is returned as-is, and the placeholder credentials
flow to the container unchanged.

# Usage

	v := bucket.NewS3Validator()
	region, err := v.Validate(ctx, req.Bucket, req.Region, req.Credentials)
	if err != nil {
		return err // wraps errdefs.ErrInvalidBucket
	}
	// region may differ from req.Region; use it from here on

# Integration Points

This package integrates with:

  - pkg/manager: First step of the assignment path
  - pkg/errdefs: Error taxonomy for API mapping

# See Also

  - pkg/manager for where validation sits in the assignment flow
  - AWS SDK for Go: https://github.com/aws/aws-sdk-go
*/
package bucket
