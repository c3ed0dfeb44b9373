// Package errors provides structured, machine-readable application errors.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeCredentialInvalid Code = "CREDENTIAL_INVALID"
	CodeCredentialExpired Code = "CREDENTIAL_EXPIRED"

	// Permission errors
	CodeRoleNotAllowed       Code = "ROLE_NOT_ALLOWED"
	CodeNotResourceOwner     Code = "NOT_RESOURCE_OWNER"
	CodeVendorProfileMissing Code = "VENDOR_PROFILE_MISSING"
	CodeVendorPortNotServed  Code = "VENDOR_PORT_NOT_SERVED"

	// Lookup errors
	CodeRFQNotFound           Code = "RFQ_NOT_FOUND"
	CodeQuoteNotFound         Code = "QUOTE_NOT_FOUND"
	CodeOrderNotFound         Code = "ORDER_NOT_FOUND"
	CodeVendorProfileNotFound Code = "VENDOR_PROFILE_NOT_FOUND"

	// Validation errors
	CodeInvalidArgument         Code = "INVALID_ARGUMENT"
	CodeQuoteItemCountMismatch  Code = "QUOTE_ITEM_COUNT_MISMATCH"
	CodePercentageOutOfRange    Code = "PERCENTAGE_OUT_OF_RANGE"
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeInvalidCurrency         Code = "INVALID_CURRENCY"
	CodeInvalidStatus           Code = "INVALID_STATUS"
	CodeInvalidFilter           Code = "INVALID_FILTER"
	CodeRFQItemsRequired        Code = "RFQ_ITEMS_REQUIRED"
	CodeRFQBudgetRangeInvalid   Code = "RFQ_BUDGET_RANGE_INVALID"
	CodeVendorCompanyNameEmpty  Code = "VENDOR_COMPANY_NAME_EMPTY"
	CodeTrackingDelayHoursRange Code = "TRACKING_DELAY_HOURS_OUT_OF_RANGE"

	// Conflict errors
	CodeQuoteAlreadyAccepted Code = "QUOTE_ALREADY_ACCEPTED"
	CodeOrderAlreadyExists   Code = "ORDER_ALREADY_EXISTS"
	CodeQuoteNotSubmitted    Code = "QUOTE_NOT_SUBMITTED"
	CodeQuoteLocked          Code = "QUOTE_LOCKED"

	// Storage errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// Kind groups codes into the failure classes callers act on.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindUnauthenticated Kind = "unauthenticated"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindValidation      Kind = "validation_error"
	KindConflict        Kind = "conflict"
	KindStorageFailure  Kind = "storage_failure"
)

// Kind returns the failure class for the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeUnauthenticated, CodeCredentialInvalid, CodeCredentialExpired:
		return KindUnauthenticated
	case CodeRoleNotAllowed, CodeNotResourceOwner, CodeVendorProfileMissing, CodeVendorPortNotServed:
		return KindForbidden
	case CodeRFQNotFound, CodeQuoteNotFound, CodeOrderNotFound, CodeVendorProfileNotFound:
		return KindNotFound
	case CodeInvalidArgument,
		CodeQuoteItemCountMismatch,
		CodePercentageOutOfRange,
		CodeInvalidAmount,
		CodeInvalidCurrency,
		CodeInvalidStatus,
		CodeInvalidFilter,
		CodeRFQItemsRequired,
		CodeRFQBudgetRangeInvalid,
		CodeVendorCompanyNameEmpty,
		CodeTrackingDelayHoursRange:
		return KindValidation
	case CodeQuoteAlreadyAccepted, CodeOrderAlreadyExists, CodeQuoteNotSubmitted, CodeQuoteLocked:
		return KindConflict
	case CodeStorageFailure:
		return KindStorageFailure
	default:
		return KindUnknown
	}
}

// HTTPStatus maps the kind to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
