// Package order records completed checkouts of signed-in users.
package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

type Querier interface {
	InsertOrder(c context.Context, arg repository.InsertOrderParams) (repository.Order, error)
	FindOrdersByUserId(c context.Context, userID uuid.UUID) ([]repository.Order, error)
}

type OrderService struct {
	queries  Querier
	validate *validator.Validate
}

func NewOrderService(queries Querier) *OrderService {
	return &OrderService{queries: queries, validate: validate.New()}
}

// Validate checks param against the order schema without writing anything.
func (s *OrderService) Validate(c context.Context, param request.CreateOrder) error {
	return s.validate.StructCtx(c, param)
}

func (s *OrderService) CreateOrder(
	c context.Context,
	param request.CreateOrder,
) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService CreateOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "OrderService CreateOrder").
		Str(constants.KEY_USER_ID, param.UserId.String()).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "validating order").Logger()
	logger.Info().Msg("validating order")
	if err := s.Validate(c, param); err != nil {
		err = fmt.Errorf("failed validating order with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("validated order")

	logger = logger.With().Str(constants.KEY_PROCESS, "encoding order data").Logger()
	orderData, err := json.Marshal(map[string]interface{}{"items": param.OrderItems})
	if err != nil {
		err = fmt.Errorf("failed encoding order data with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	orderId := uuid.New()
	logger = logger.With().
		Str(constants.KEY_PROCESS, "inserting order").
		Str(constants.KEY_ORDER_ID, orderId.String()).
		Logger()
	logger.Info().Msg("inserting order")
	inserted, err := s.queries.InsertOrder(c, repository.InsertOrderParams{
		ID:           orderId,
		UserID:       param.UserId,
		CheckoutUrl:  param.CheckoutUrl,
		TotalAmount:  repository.NumericFromDecimal(param.TotalAmount),
		CurrencyCode: param.CurrencyCode,
		Status:       repository.OrderStatusPending,
		OrderData:    orderData,
	})
	if err != nil {
		err = fmt.Errorf("failed inserting order with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Msg("inserted order")

	return toResponse(inserted)
}

func (s *OrderService) FindOrdersByUserId(
	c context.Context,
	userId uuid.UUID,
) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "OrderService FindOrdersByUserId")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "OrderService FindOrdersByUserId").
		Str(constants.KEY_USER_ID, userId.String()).
		Str(constants.KEY_PROCESS, "finding orders").
		Logger()

	logger.Info().Msg("finding orders")
	rows, err := s.queries.FindOrdersByUserId(c, userId)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d orders", len(rows))

	logger = logger.With().Str(constants.KEY_PROCESS, "mapping orders").Logger()
	orders := make([]response.Order, 0, len(rows))
	for _, row := range rows {
		order, err := toResponse(row)
		if err != nil {
			err = fmt.Errorf("failed mapping orderId=%s with error=%w", row.ID.String(), err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func toResponse(o repository.Order) (response.Order, error) {
	data := struct {
		Items []response.OrderItem `json:"items"`
	}{}
	if err := json.Unmarshal(o.OrderData, &data); err != nil {
		return response.Order{}, err
	}
	if data.Items == nil {
		data.Items = []response.OrderItem{}
	}
	return response.Order{
		ID:           o.ID,
		UserId:       o.UserID,
		CheckoutUrl:  o.CheckoutUrl,
		TotalAmount:  o.Total(),
		CurrencyCode: o.CurrencyCode,
		Status:       string(o.Status),
		OrderItems:   data.Items,
		CreatedAt:    o.CreatedAt.Time,
		UpdatedAt:    o.UpdatedAt.Time,
	}, nil
}
