// internal/service/order/domain/errors.go
package domain

import "demoshop/internal/pkg/apperr"

var (
	ErrNotFound = apperr.New(apperr.NotFound, "order not found")
)
