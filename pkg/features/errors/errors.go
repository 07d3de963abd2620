package errors

import (
	stderrors "errors"
	"strconv"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	schedulertypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/smithy-go"
	twilioclient "github.com/twilio/twilio-go/client"
)

var (
	ErrNotFound      = stderrors.New("item not found")
	ErrAlreadySent   = stderrors.New("reminder already sent")
	ErrMissingConfig = stderrors.New("missing configuration")
)

// IsConditionalCheckFailed reports whether a DynamoDB write was rejected by its condition expression.
func IsConditionalCheckFailed(err error) bool {
	var ccf *dynamotypes.ConditionalCheckFailedException
	return stderrors.As(err, &ccf)
}

// IsNotFound reports whether err means the requested item, table or schedule does not exist.
func IsNotFound(err error) bool {
	if stderrors.Is(err, ErrNotFound) {
		return true
	}
	var tableNotFound *dynamotypes.ResourceNotFoundException
	if stderrors.As(err, &tableNotFound) {
		return true
	}
	var scheduleNotFound *schedulertypes.ResourceNotFoundException
	return stderrors.As(err, &scheduleNotFound)
}

// IsConflict reports whether the scheduler refused to create a resource that already exists.
func IsConflict(err error) bool {
	var conflict *schedulertypes.ConflictException
	return stderrors.As(err, &conflict)
}

// ProviderCode extracts the error code reported by the messaging provider,
// or an empty string when err did not come from one.
func ProviderCode(err error) string {
	var twilioErr *twilioclient.TwilioRestError
	if stderrors.As(err, &twilioErr) {
		return strconv.Itoa(twilioErr.Code)
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
