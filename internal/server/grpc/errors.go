package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var reasonCodes = map[services.Reason]codes.Code{
	services.ReasonInvalidCredentials:  codes.Unauthenticated,
	services.ReasonInvalidToken:        codes.Unauthenticated,
	services.ReasonRefreshTokenInvalid: codes.Unauthenticated,
	services.ReasonRefreshTokenExpired: codes.Unauthenticated,
	services.ReasonNotFound:            codes.NotFound,
	services.ReasonRoleNotFound:        codes.NotFound,
	services.ReasonDuplicateUserName:   codes.AlreadyExists,
	services.ReasonDuplicateEmail:      codes.AlreadyExists,
	services.ReasonRoleAlreadyExists:   codes.AlreadyExists,
	services.ReasonRoleAlreadyAssigned: codes.AlreadyExists,
	services.ReasonRoleNotAssigned:     codes.FailedPrecondition,
	services.ReasonInvalidResetToken:   codes.FailedPrecondition,
}

// toStatus converts a service error to a gRPC status. Rejections keep their
// reason as the message; infrastructure faults are logged and hidden.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if r, ok := services.AsRejection(err); ok {
		code, known := reasonCodes[r.Reason]
		if !known {
			code = codes.FailedPrecondition
		}
		return status.Error(code, string(r.Reason))
	}

	if v, ok := services.AsValidationError(err); ok {
		return status.Error(codes.InvalidArgument, v.Error())
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	s.logger.Error(ctx, "internal error", "error", err.Error())
	return status.Error(codes.Internal, "internal error")
}
