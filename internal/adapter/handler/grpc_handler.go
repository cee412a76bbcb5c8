package handler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/core/service"
)

const shopServiceName = "hotproduct.v1.ShopService"

type GetProductRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
}

type OrderRequest struct {
	OrderID int64 `json:"orderId" validate:"gt=0"`
}

// ShopServer is the server API for hotproduct.v1.ShopService.
type ShopServer interface {
	GetProduct(context.Context, *GetProductRequest) (*domain.Product, error)
	Purchase(context.Context, *PurchaseRequest) (*domain.Order, error)
	CancelOrder(context.Context, *OrderRequest) (*CancelOrderResponse, error)
	GetOrder(context.Context, *OrderRequest) (*domain.Order, error)
}

var ShopServiceDesc = grpc.ServiceDesc{
	ServiceName: shopServiceName,
	HandlerType: (*ShopServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: unary("GetProduct", ShopServer.GetProduct)},
		{MethodName: "Purchase", Handler: unary("Purchase", ShopServer.Purchase)},
		{MethodName: "CancelOrder", Handler: unary("CancelOrder", ShopServer.CancelOrder)},
		{MethodName: "GetOrder", Handler: unary("GetOrder", ShopServer.GetOrder)},
	},
	Streams: []grpc.StreamDesc{},
}

func unary[Req, Resp any](method string, call func(ShopServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + shopServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			resp, err := call(srv.(ShopServer), ctx, in)
			return resp, err
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(ShopServer), ctx, req.(*Req))
			return resp, err
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	products *service.ProductService
	orders   *service.OrderService
}

func NewGRPCHandler(products *service.ProductService, orders *service.OrderService) *GRPCHandler {
	return &GRPCHandler{products: products, orders: orders}
}

// NewGRPCServer builds a server with ShopService registered and request logging.
func NewGRPCServer(h *GRPCHandler, logger zerolog.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(logger)))
	s.RegisterService(&ShopServiceDesc, h)
	return s
}

func (h *GRPCHandler) GetProduct(ctx context.Context, req *GetProductRequest) (*domain.Product, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	p, err := h.products.GetProductDetail(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return p, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *PurchaseRequest) (*domain.Order, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	items := make([]domain.PurchaseItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.PurchaseItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := h.orders.CreateOrder(ctx, req.UserID, items)
	if err != nil {
		return nil, toStatus(err)
	}
	return order, nil
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *OrderRequest) (*CancelOrderResponse, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	cancelled, err := h.orders.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelOrderResponse{OrderID: req.OrderID, Cancelled: cancelled}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *OrderRequest) (*domain.Order, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	order, err := h.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return order, nil
}

func checkRequest(req any) error {
	if errs := validateStruct(req); errs != nil {
		return status.Error(codes.InvalidArgument, describe(errs))
	}
	return nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, "sold out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	log := logger.With().Str("component", "grpc").Logger()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := log.Debug()
		if code == codes.Internal || code == codes.Unknown {
			ev = log.Error().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("elapsed", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}

// ShopClient calls ShopService over a connection using the JSON codec.
type ShopClient struct {
	cc grpc.ClientConnInterface
}

func NewShopClient(cc grpc.ClientConnInterface) *ShopClient {
	return &ShopClient{cc: cc}
}

func (c *ShopClient) GetProduct(ctx context.Context, req *GetProductRequest) (*domain.Product, error) {
	out := new(domain.Product)
	if err := c.invoke(ctx, "GetProduct", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShopClient) Purchase(ctx context.Context, req *PurchaseRequest) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, "Purchase", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShopClient) CancelOrder(ctx context.Context, req *OrderRequest) (*CancelOrderResponse, error) {
	out := new(CancelOrderResponse)
	if err := c.invoke(ctx, "CancelOrder", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShopClient) GetOrder(ctx context.Context, req *OrderRequest) (*domain.Order, error) {
	out := new(domain.Order)
	if err := c.invoke(ctx, "GetOrder", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShopClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+shopServiceName+"/"+method, in, out, grpc.CallContentSubtype(jsonCodecName))
}
