// Package businessflow contains the core business logic and use cases for campaign and messaging workflows
package businessflow

import (
	"errors"
	"fmt"

	"github.com/retailops/messaging-engine/models"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignAccessDenied = errors.New("campaign access denied")
	ErrCampaignNotEditable  = errors.New("campaign is not editable in its current status")
	ErrCampaignNotDeletable = errors.New("only finished campaigns can be deleted")
	ErrCampaignRosterEmpty  = errors.New("campaign has no populated audience")
	ErrCampaignUUIDRequired = errors.New("campaign UUID is required")
	ErrScheduleTimeInPast   = errors.New("schedule time must be in the future")
	ErrAudienceModeInvalid  = errors.New("audience mode is invalid")
	ErrAudienceEmpty        = errors.New("audience selection matched no sendable leads")
	ErrMediaPathRequired    = errors.New("media path is required for media messages")
	ErrMessageRequired      = errors.New("message body is required for text messages")
	ErrPacingDelayWindow    = errors.New("max delay must not be below min delay")

	// Instant batch errors
	ErrBatchNotFound     = errors.New("instant batch not found")
	ErrBatchAccessDenied = errors.New("instant batch access denied")
	ErrNoUsableLeads     = errors.New("none of the selected leads has a usable phone")

	// Stats errors
	ErrInvalidDateRange = errors.New("date_from must not be after date_to")
)

// StateTransitionError reports a disallowed campaign status change
type StateTransitionError struct {
	From models.CampaignStatus
	To   models.CampaignStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition campaign from %s to %s", e.From, e.To)
}

// BusinessError represents a business logic error with context
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions to check error types
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsCampaignNotDeletable(err error) bool {
	return errors.Is(err, ErrCampaignNotDeletable)
}

func IsAudienceEmpty(err error) bool {
	return errors.Is(err, ErrAudienceEmpty)
}

func IsBatchNotFound(err error) bool {
	return errors.Is(err, ErrBatchNotFound)
}

func IsStateTransitionError(err error) bool {
	var ste *StateTransitionError
	return errors.As(err, &ste)
}
