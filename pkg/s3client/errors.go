package s3client

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/minio/minio-go/v7"
)

// Code extracts the provider's machine-readable error code, falling back to
// the HTTP status code as a string.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) && minioErr.Code != "" {
		return minioErr.Code
	}

	var httpErr *smithyhttp.ResponseError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.HTTPStatusCode())
	}
	if errors.As(err, &minioErr) && minioErr.StatusCode != 0 {
		return strconv.Itoa(minioErr.StatusCode)
	}
	return ""
}

// Describe maps a provider error onto a short actionable message. Any of
// the given secrets found in the provider's text are redacted.
func Describe(err error, secrets ...string) string {
	switch Code(err) {
	case "NoSuchBucket", "BucketNotFound", "404":
		return "Bucket does not exist"
	case "AccessDenied", "Forbidden", "403":
		return "Access denied - check credentials and bucket permissions"
	case "InvalidAccessKeyId":
		return "Invalid access key"
	case "SignatureDoesNotMatch":
		return "Invalid secret key"
	case "NoSuchKey":
		return "Object does not exist"
	}
	return "Connection error: " + redact(providerMessage(err), secrets...)
}

func providerMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) && minioErr.Message != "" {
		return minioErr.Message
	}
	return err.Error()
}

func redact(message string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			message = strings.ReplaceAll(message, secret, "[redacted]")
		}
	}
	return message
}

// Temporary reports whether retrying the same request may succeed.
func Temporary(err error) bool {
	switch Code(err) {
	case "InternalError", "ServiceUnavailable", "SlowDown", "RequestTimeout",
		strconv.Itoa(http.StatusInternalServerError),
		strconv.Itoa(http.StatusBadGateway),
		strconv.Itoa(http.StatusServiceUnavailable),
		strconv.Itoa(http.StatusGatewayTimeout):
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily unavailable")
}
