// internal/service/order/interfaces/checkout_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/pkg/logger"
	"demoshop/internal/pkg/mq"
	"demoshop/internal/service/order/application"
	"demoshop/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// CheckoutConsumerAdapter 是驱动适配器：监听结账主题并驱动应用服务。
// 一次只处理一条消息，处理完成（或移交死信）后才提交 offset。
type CheckoutConsumerAdapter struct {
	reader  *kafka.Reader
	appSvc  *application.OrderApplicationService
	wg      sync.WaitGroup
	stopped atomic.Bool

	failureHandler *mq.FailureHandler

	brokers             []string
	connectRetryBackoff time.Duration
	handleMaxRetries    int
	handleRetryBackoff  time.Duration
}

// NewCheckoutConsumerAdapter 创建一个新的 Kafka 消费者适配器。
func NewCheckoutConsumerAdapter(reader *kafka.Reader, brokers []string, appSvc *application.OrderApplicationService, failureHandler *mq.FailureHandler, connectRetryBackoff time.Duration, handleMaxRetries int, handleRetryBackoff time.Duration) *CheckoutConsumerAdapter {
	return &CheckoutConsumerAdapter{
		reader:              reader,
		appSvc:              appSvc,
		failureHandler:      failureHandler,
		brokers:             brokers,
		connectRetryBackoff: connectRetryBackoff,
		handleMaxRetries:    handleMaxRetries,
		handleRetryBackoff:  handleRetryBackoff,
	}
}

// Start 开始监听结账主题。这是一个长期运行的方法。
func (a *CheckoutConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// broker 可达之前不进入消费循环，起动顺序不依赖 Kafka 先就绪
		if err := a.waitForBroker(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("🛑 Checkout consumer gave up waiting for broker")
			return
		}

		logger.Ctx(ctx).Info().
			Str("topic", a.reader.Config().Topic).
			Str("group_id", a.reader.Config().GroupID).
			Msg("✅ Checkout consumer started")

		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || a.stopped.Load() {
					logger.Ctx(ctx).Info().Msg("🛑 Checkout consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("Could not fetch message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(a.connectRetryBackoff):
				}
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			msgCtx := propagator.Extract(ctx, &headerCarrier)

			a.processMessage(msgCtx, msg)

			// 处理结果已终态化（成功、跳过或移交死信），提交 offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit message")
			}
		}
	}()
	return nil
}

// waitForBroker 反复探测 broker 直到可达或上下文取消。
func (a *CheckoutConsumerAdapter) waitForBroker(ctx context.Context) error {
	for {
		conn, err := kafka.DialContext(ctx, "tcp", a.brokers[0])
		if err == nil {
			conn.Close()
			return nil
		}
		logger.Ctx(ctx).Warn().
			Str("broker", a.brokers[0]).
			Dur("retry_in", a.connectRetryBackoff).
			Err(err).
			Msg("Kafka broker not reachable, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.connectRetryBackoff):
		}
	}
}

// processMessage 把一条消息推进到终态：
// 成功或业务性失败直接结束；暂时性失败在原地重试若干次；
// 毒消息和重试耗尽的消息移交死信主题。
func (a *CheckoutConsumerAdapter) processMessage(ctx context.Context, msg kafka.Message) {
	var event domain.CheckoutEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		a.failureHandler.Handle(ctx, msg, mq.ReasonPoison, err)
		return
	}

	eventKey := event.EventID
	if eventKey == "" {
		eventKey = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}

	var lastErr error
	for attempt := 0; attempt <= a.handleMaxRetries; attempt++ {
		if attempt > 0 {
			logger.Ctx(ctx).Warn().
				Str("event_key", eventKey).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Retrying checkout event after transient failure")
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.handleRetryBackoff):
			}
		}

		lastErr = a.appSvc.HandleCheckoutEvent(ctx, &event, eventKey)
		if lastErr == nil {
			return
		}
		if !apperr.IsTransient(lastErr) {
			// 结构性坏消息，重试无意义
			a.failureHandler.Handle(ctx, msg, mq.ReasonPoison, lastErr)
			return
		}
	}

	a.failureHandler.Handle(ctx, msg, mq.ReasonRetriesExhausted, lastErr)
}

// Stop 优雅地停止消费者。
func (a *CheckoutConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Msg("✅ Checkout consumer stopped")
}
