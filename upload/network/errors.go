package network

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/minio/minio-go/v7"
)

var transientCodes = map[string]bool{
	"SlowDown":             true,
	"RequestTimeout":       true,
	"RequestTimeTooSkewed": true,
	"InternalError":        true,
	"ServiceUnavailable":   true,
	"OperationAborted":     true,
}

// classifyS3Error marks S3 errors that are worth retrying as transient.
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		if transientCodes[apiError.ErrorCode()] || apiError.ErrorFault() == smithy.FaultServer {
			return transfer.Transient(err)
		}
		return err
	}

	if isNetworkError(err) {
		return transfer.Transient(err)
	}
	return err
}

// classifyMinioError marks MinIO errors that are worth retrying as transient.
func classifyMinioError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code != "" || resp.StatusCode != 0 {
		if transientCodes[resp.Code] || resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return transfer.Transient(err)
		}
		return err
	}

	if isNetworkError(err) {
		return transfer.Transient(err)
	}
	return err
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
