package bucket

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// MinNameLength and MaxNameLength bound bucket names.
	MinNameLength = 3
	MaxNameLength = 63
)

// namePattern enforces lowercase alphanumerics plus '.' and '-', with
// alphanumeric first and last characters.
var namePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9.-]*[a-z0-9])?$`)

// Validator checks that a requested bucket can actually back a workspace.
// Validate returns the effective region, which may differ from the
// requested one when the remote check discovers the bucket's real home.
type Validator interface {
	Validate(ctx context.Context, name, region string, creds types.Credentials) (string, error)
}

// ValidateName checks bucket name syntax. Remote checks only run on names
// that pass.
func ValidateName(name string) error {
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return fmt.Errorf("%w: bucket name must be %d-%d characters, got %d",
			errdefs.ErrInvalidBucket, MinNameLength, MaxNameLength, len(name))
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: bucket name %q must be lowercase alphanumerics, '.', or '-', and must not start or end with '.' or '-'",
			errdefs.ErrInvalidBucket, name)
	}
	return nil
}

// skipRemoteCheck reports whether the supplied credentials are the
// dummy/test placeholders used in local development, where no object store
// exists to answer a HeadBucket.
func skipRemoteCheck(creds types.Credentials) bool {
	key := strings.ToLower(creds.AccessKeyID)
	return key == "dummy" || key == "test"
}
