package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/centerctx"
	"github.com/fitstack/centerledger/internal/clock"
	"github.com/fitstack/centerledger/internal/customer/domain"
	"github.com/fitstack/centerledger/internal/customer/repository"
	"github.com/fitstack/centerledger/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Customer{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, node, fake
}

func testCtx(centerID snowflake.ID) context.Context {
	return centerctx.WithCenterID(context.Background(), int64(centerID))
}

func TestCreateAndGetCustomer(t *testing.T) {
	svc, node, _ := newTestService(t)
	ctx := testCtx(node.Generate())

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "Alice",
		Email: "alice@example.com",
		Phone: "555-0101",
	})
	if err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}

	found, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID.String()})
	if err != nil {
		t.Fatalf("failed to get customer: %v", err)
	}
	if found.Name != "Alice" || found.Phone != "555-0101" {
		t.Fatalf("unexpected customer: %+v", found)
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, node, _ := newTestService(t)
	ctx := testCtx(node.Generate())

	if _, err := svc.Create(ctx, domain.CreateCustomerRequest{Email: "a@b.c"}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Bob", Email: "nope"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Bob", Email: "b@c.d"}); !errors.Is(err, domain.ErrInvalidCenter) {
		t.Fatalf("expected ErrInvalidCenter, got %v", err)
	}
}

func TestGetCustomerNotFound(t *testing.T) {
	svc, node, _ := newTestService(t)
	ctx := testCtx(node.Generate())

	if _, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: node.Generate().String()}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCustomersPaginates(t *testing.T) {
	svc, node, fake := newTestService(t)
	ctx := testCtx(node.Generate())

	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, domain.CreateCustomerRequest{
			Name:  fmt.Sprintf("Member %d", i),
			Email: fmt.Sprintf("member%d@example.com", i),
		}); err != nil {
			t.Fatalf("failed to create customer %d: %v", i, err)
		}
		fake.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 3})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(first.Customers) != 3 || !first.HasMore {
		t.Fatalf("expected 3 customers and has_more, got %d has_more=%v", len(first.Customers), first.HasMore)
	}

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 3, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("failed to list second page: %v", err)
	}
	if len(second.Customers) != 2 || second.HasMore {
		t.Fatalf("expected 2 customers and no more pages, got %d has_more=%v", len(second.Customers), second.HasMore)
	}
}
