package mq

import (
	"context"
	"strconv"

	"demoshop/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// 死信消息携带的诊断头，排障时可还原失败现场。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderFailureReason     = "x-failure-reason"
	HeaderExceptionMessage  = "x-exception-message"
)

// 死信原因的取值。
const (
	ReasonPoison           = "poison"
	ReasonRetriesExhausted = "retries_exhausted"
)

// MessageWriter 是发送端的最小接口，便于测试替换。
// *kafka.Writer 天然满足。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// FailureHandler 把处理失败的消息移交到死信主题（DLT）。
// 移交成功后原消息可以安全提交，不会再次投递。
type FailureHandler struct {
	dltWriter MessageWriter
}

func NewFailureHandler(dltWriter MessageWriter) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 给原消息打上诊断头后写入 DLT。
// DLT 写入失败只能记日志——此时消息未提交，重启后会重新投递。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, reason string, cause error) error {
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header{}, msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderFailureReason, Value: []byte(reason)},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}

	if err := h.dltWriter.WriteMessages(ctx, dead); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Int64("original_offset", msg.Offset).
			Msg("CRITICAL: failed to publish dead letter")
		return err
	}

	dltPublished.WithLabelValues(reason).Inc()
	logger.Ctx(ctx).Warn().
		Str("reason", reason).
		Str("original_topic", msg.Topic).
		Int64("original_offset", msg.Offset).
		Str("cause", cause.Error()).
		Msg("message moved to DLT")
	return nil
}
