package handler

import (
	"context"

	"dapur-be/internal/order"
	"dapur-be/internal/product"

	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func orderResult(args mock.Arguments) (*order.Order, error) {
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, in order.CreateOrderInput) (*order.Order, error) {
	return orderResult(m.Called(ctx, in))
}

func (m *MockOrderService) GetOrder(ctx context.Context, ref string) (*order.Order, error) {
	return orderResult(m.Called(ctx, ref))
}

func (m *MockOrderService) ListOrdersByPhone(ctx context.Context, phone string, status *order.Status) ([]*order.Order, error) {
	args := m.Called(ctx, phone, status)
	orders, _ := args.Get(0).([]*order.Order)
	return orders, args.Error(1)
}

func (m *MockOrderService) ListOrdersAsCustomer(ctx context.Context, phone, code string, status *order.Status) ([]*order.Order, error) {
	args := m.Called(ctx, phone, code, status)
	orders, _ := args.Get(0).([]*order.Order)
	return orders, args.Error(1)
}

func (m *MockOrderService) Transition(ctx context.Context, id string, target order.Status) (*order.Order, error) {
	return orderResult(m.Called(ctx, id, target))
}

func (m *MockOrderService) Cancel(ctx context.Context, id string, by order.Initiator) (*order.Order, error) {
	return orderResult(m.Called(ctx, id, by))
}

func (m *MockOrderService) CancelAsCustomer(ctx context.Context, ref, phone, code string) (*order.Order, error) {
	return orderResult(m.Called(ctx, ref, phone, code))
}

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Send(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *MockVerificationService) Consume(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

func (m *MockVerificationService) Sweep(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*product.Product)
	return p, args.Error(1)
}

func (m *MockCatalog) GetStock(ctx context.Context, productID string) (*product.StockLevel, error) {
	args := m.Called(ctx, productID)
	s, _ := args.Get(0).(*product.StockLevel)
	return s, args.Error(1)
}

func (m *MockCatalog) ConditionalDecrement(ctx context.Context, productID string, qty int) (int, error) {
	args := m.Called(ctx, productID, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalog) Increment(ctx context.Context, productID string, qty int) (int, error) {
	args := m.Called(ctx, productID, qty)
	return args.Int(0), args.Error(1)
}
