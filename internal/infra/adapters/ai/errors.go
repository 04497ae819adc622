package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"crazeai/internal/domain"
)

// apiStatus pulls a status code and message out of a provider SDK error.
type apiStatus func(err error) (status int, detail string, ok bool)

// classify maps an SDK or transport error into the domain taxonomy.
func classify(ctx context.Context, service string, err error, status apiStatus) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: service, Attempts: 1, Err: err}
	}
	if status != nil {
		if code, detail, ok := status(err); ok {
			return &domain.ServiceError{Service: service, StatusCode: code, Detail: detail, Err: err}
		}
	}
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &domain.NetworkError{Service: service, Err: err}
	}
	return &domain.ServiceError{Service: service, Detail: err.Error(), Err: err}
}

func malformed(service, format string, args ...any) error {
	return &domain.ServiceError{Service: service, Detail: fmt.Sprintf(format, args...)}
}
