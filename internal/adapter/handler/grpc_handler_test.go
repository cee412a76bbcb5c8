package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T, f *fixture) *ShopClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewGRPCHandler(f.products, f.orders), zerolog.Nop())
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewShopClient(conn)
}

func TestGRPC_GetProduct(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f)
	p := f.seed(t, "Camera", "450.50", 2)
	ctx := context.Background()

	got, err := client.GetProduct(ctx, &GetProductRequest{ID: p.ID})
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Name != "Camera" || !got.Price.Equal(decimal.RequireFromString("450.5")) {
		t.Errorf("unexpected product %+v", got)
	}

	_, err = client.GetProduct(ctx, &GetProductRequest{ID: 999})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}

	_, err = client.GetProduct(ctx, &GetProductRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_PurchaseLifecycle(t *testing.T) {
	f := newFixture(t)
	client := newTestClient(t, f)
	p := f.seed(t, "Drone", "100.00", 1)
	ctx := context.Background()

	order, err := client.Purchase(ctx, &PurchaseRequest{
		UserID: 3,
		Items:  []PurchaseItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if order.ID == 0 || order.OrderNumber == "" {
		t.Fatalf("expected persisted order, got %+v", order)
	}

	_, err = client.Purchase(ctx, &PurchaseRequest{
		UserID: 3,
		Items:  []PurchaseItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition when sold out, got %v", err)
	}

	fetched, err := client.GetOrder(ctx, &OrderRequest{OrderID: order.ID})
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if fetched.OrderNumber != order.OrderNumber {
		t.Errorf("expected %s, got %s", order.OrderNumber, fetched.OrderNumber)
	}

	resp, err := client.CancelOrder(ctx, &OrderRequest{OrderID: order.ID})
	if err != nil || !resp.Cancelled {
		t.Fatalf("expected cancel, resp=%+v err=%v", resp, err)
	}

	restored, _ := f.products.GetProductByID(ctx, p.ID)
	if restored.Stock != 1 {
		t.Errorf("expected stock restored to 1, got %d", restored.Stock)
	}
}
