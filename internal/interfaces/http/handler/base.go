package handler

import (
	"context"

	apperrors "faq-rag-api/pkg/errors"
	"faq-rag-api/pkg/logger"
)

// logFailure 5xx 记为 error，其余为 warn
func logFailure(ctx context.Context, msg string, err error) {
	if apperrors.AsAppError(err).HTTPStatus >= 500 {
		logger.Error(ctx, msg, err)
		return
	}
	logger.Warn(ctx, msg, "error", err.Error())
}
