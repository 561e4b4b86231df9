// internal/service/order/interfaces/dlt_consumer.go
package interfaces

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"demoshop/internal/pkg/logger"
	"demoshop/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// DltConsumerAdapter 监听死信队列并记录日志
type DltConsumerAdapter struct {
	reader       *kafka.Reader
	retryBackoff time.Duration
	wg           sync.WaitGroup
	stopped      atomic.Bool
}

func NewDltConsumerAdapter(reader *kafka.Reader, retryBackoff time.Duration) *DltConsumerAdapter {
	return &DltConsumerAdapter{
		reader:       reader,
		retryBackoff: retryBackoff,
	}
}

func (a *DltConsumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter started.")
		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || a.stopped.Load() {
					logger.Ctx(ctx).Info().Msg("🛑 DLT Consumer Adapter shutting down.")
					return
				}
				// 读失败时按退避间隔重试，broker 掉线不空转
				logger.Ctx(ctx).Error().Err(err).Msg("Could not read dead letter, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(a.retryBackoff):
				}
				continue
			}

			// 死信消息只记录，不再处理
			logDeadLetter(ctx, msg)
		}
	}()
	return nil
}

func (a *DltConsumerAdapter) Stop(ctx context.Context) {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter stopped.")
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := make(map[string]string)
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	// 结构化记录，便于告警和人工介入
	logger.Ctx(ctx).Error().
		Str("reason", headers[mq.HeaderFailureReason]).
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
