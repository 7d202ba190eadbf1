// Package commerce talks to the commerce platform's storefront API through the
// query-forwarding endpoint.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

var ErrGraphQL = errors.New("commerce query failed")

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg config.Commerce) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.ApiKey,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "commerce",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (cl *Client) GetProducts(c context.Context, count int) ([]Product, error) {
	c, span := otel.Tracer.Start(c, "CommerceClient GetProducts")
	defer span.End()
	span.SetAttributes(attribute.Int("count", count))

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CommerceClient GetProducts").
		Int(constants.KEY_QUANTITY, count).
		Str(constants.KEY_PROCESS, "getting products").
		Logger()

	logger.Info().Msg("getting products")
	data, err := send[getProductsData](
		logger.WithContext(c),
		cl,
		queryGetProducts,
		map[string]interface{}{"count": count},
	)
	if err != nil {
		err = fmt.Errorf("failed getting products with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	products := make([]Product, 0, len(data.Products.Edges))
	for _, node := range data.Products.nodes() {
		products = append(products, node.product())
	}
	logger.Info().Msgf("got %d products", len(products))

	return products, nil
}

func (cl *Client) GetProductByID(c context.Context, id string) (Product, error) {
	c, span := otel.Tracer.Start(c, "CommerceClient GetProductByID")
	defer span.End()
	span.SetAttributes(attribute.String(constants.KEY_PRODUCT_ID, id))

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CommerceClient GetProductByID").
		Str(constants.KEY_PRODUCT_ID, id).
		Str(constants.KEY_PROCESS, "getting product by id").
		Logger()

	logger.Trace().Msg("getting product by id")
	data, err := send[getProductByIdData](
		logger.WithContext(c),
		cl,
		queryGetProductById,
		map[string]interface{}{"id": id},
	)
	if err != nil {
		err = fmt.Errorf("failed getting productId=%s with error=%w", id, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}
	if data.Product == nil {
		err = fmt.Errorf("failed getting productId=%s with error=%w", id, inErrors.ErrProductNotFound)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Product{}, err
	}
	logger.Trace().Msg("got product by id")

	return data.Product.product(), nil
}

// CartCreate opens a checkout for the given lines. User errors reported by the platform
// are returned in the result, not as an error.
func (cl *Client) CartCreate(
	c context.Context,
	lines []CartLineInput,
	buyer *BuyerIdentity,
) (CartCreateResult, error) {
	c, span := otel.Tracer.Start(c, "CommerceClient CartCreate")
	defer span.End()
	span.SetAttributes(attribute.Int("lines", len(lines)))

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CommerceClient CartCreate").
		Any(constants.KEY_CART_ITEMS, lines).
		Str(constants.KEY_PROCESS, "creating remote cart").
		Logger()

	input := map[string]interface{}{"lines": lines}
	if buyer != nil {
		input["buyerIdentity"] = buyer
	}

	logger.Info().Msg("creating remote cart")
	data, err := send[cartCreateData](
		logger.WithContext(c),
		cl,
		mutationCartCreate,
		map[string]interface{}{"input": input},
	)
	if err != nil {
		err = fmt.Errorf("failed creating remote cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return CartCreateResult{}, err
	}

	result := CartCreateResult{UserErrors: data.CartCreate.UserErrors}
	if cart := data.CartCreate.Cart; cart != nil {
		result.CartID = cart.ID
		result.CheckoutURL = cart.CheckoutURL
	}
	logger.Info().
		Str(constants.KEY_CART_ID, result.CartID).
		Int("userErrors", len(result.UserErrors)).
		Msg("created remote cart")

	return result, nil
}

func send[T any](
	c context.Context,
	cl *Client,
	query string,
	variables map[string]interface{},
) (T, error) {
	var zero T
	logger := zerolog.Ctx(c).With().Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "encoding graphql request").Logger()
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return zero, fmt.Errorf("failed encoding graphql request with error=%w", err)
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "posting graphql request").Logger()
	logger.Trace().Msg("posting graphql request")
	start := time.Now()
	raw, err := cl.breaker.Execute(func() ([]byte, error) {
		return cl.post(c, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %w", inErrors.ErrCommerceUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	logger.Trace().Dur("elapsed", time.Since(start)).Msg("posted graphql request")

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding graphql response").Logger()
	resp := graphqlResponse[T]{}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return zero, fmt.Errorf("failed decoding graphql response with error=%w", err)
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return zero, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(messages, "; "))
	}
	logger.Trace().Msg("decoded graphql response")

	return resp.Data, nil
}

func (cl *Client) post(c context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(c, http.MethodPost, cl.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(inHttp.KEY_HEADER_CONTENT_TYPE, inHttp.VALUE_HEADER_APPLICATION_JSON)
	if cl.apiKey != "" {
		req.Header.Set(inHttp.KEY_HEADER_AUTHORIZATION, "Bearer "+cl.apiKey)
	}
	if requestId := log.RequestIDFromContext(c); requestId != "" {
		req.Header.Set(inHttp.KEY_HEADER_REQUEST_ID, requestId)
	}

	resp, err := cl.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inErrors.ErrCommerceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%w: status=%d body=%s",
			inErrors.ErrCommerceUnavailable,
			resp.StatusCode,
			string(raw),
		)
	}
	return raw, nil
}
