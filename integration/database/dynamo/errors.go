package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrymomot/sessionstore/core/session"
)

// ErrInvalidConfig is returned when required configuration is missing.
var ErrInvalidConfig = errors.New("dynamo: table and region are required")

// classifyError converts DynamoDB errors into the session error taxonomy.
// Every transport, auth, and throttling failure surfaces as
// session.ErrBackend so the engine can apply its uniform degraded handling.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Context errors keep their identity for cancellation handling
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s operation: %w", operation, err)
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("%w: %s operation: session table missing", session.ErrBackend, operation)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s operation failed (code: %s): %v", session.ErrBackend, operation, apiErr.ErrorCode(), err)
	}

	return fmt.Errorf("%w: %s operation failed: %v", session.ErrBackend, operation, err)
}
