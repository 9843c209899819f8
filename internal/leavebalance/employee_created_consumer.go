package leavebalance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/events"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka/consumer"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/apperror"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EmployeeCreatedHandler provisions default entitlements for new employees.
type EmployeeCreatedHandler struct {
	service Service
	now     func() time.Time
	logger  *zap.Logger
}

func NewEmployeeCreatedHandler(service Service, logger ...*zap.Logger) *EmployeeCreatedHandler {
	l := zap.L().Named("leavebalance.consumer")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.consumer")
	}
	return &EmployeeCreatedHandler{service: service, now: time.Now, logger: l}
}

func (h *EmployeeCreatedHandler) Handle(ctx context.Context, msg kafkago.Message) error {
	var event events.EmployeeCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return consumer.Permanent(fmt.Errorf("decode employee_created event: %w", err))
	}
	if event.EventType != "" && event.EventType != events.EmployeeCreatedEventType {
		return nil
	}
	if event.CompanyID == "" || event.EmployeeID == "" {
		return consumer.Permanent(errors.New("employee_created event without company or employee id"))
	}

	if event.RequestID != "" {
		ctx = contextutil.WithRequestID(ctx, event.RequestID)
	}

	year := h.now().UTC().Year()
	created, err := h.service.ProvisionDefaults(ctx, event.CompanyID, event.EmployeeID, year)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return consumer.Permanent(err)
		}
		return err
	}

	h.logger.Info("default leave balances provisioned from employee_created event",
		zap.String("request_id", event.RequestID),
		zap.String("employee_id", event.EmployeeID),
		zap.String("company_id", event.CompanyID),
		zap.Int("year", year),
		zap.Int("created", created),
	)
	return nil
}
