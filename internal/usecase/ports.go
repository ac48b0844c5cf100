package usecase

import (
	"context"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
)

// 注文イベントの送り先（Kafkaなど）。失敗してもリクエストは失敗させない
type EventPublisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
}

// 注文まわりの計測
type OrderMetrics interface {
	ObservePlacement(result string)
	ObserveTransition(from model.OrderStatus, to model.OrderStatus)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.OrderEvent) error { return nil }

type noopMetrics struct{}

func (noopMetrics) ObservePlacement(string)                             {}
func (noopMetrics) ObserveTransition(model.OrderStatus, model.OrderStatus) {}
