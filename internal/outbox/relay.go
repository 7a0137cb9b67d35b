package outbox

import (
	"context"
	"log"
	"time"

	"cv-match-go/internal/storage"
	"cv-match-go/internal/storage/models"
	"cv-match-go/internal/tracing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollingInterval = 5 * time.Second // 默认轮询outbox表的间隔
	defaultBatchSize       = 10              // 每次轮询处理的消息批量大小
	maxRetryCount          = 5               // 消息发布失败的最大重试次数
)

// MessageRelay 轮询outbox表并把批次完成事件发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       *storage.RabbitMQ
	logger          *log.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	tracer          trace.Tracer
}

// Option 配置MessageRelay
type Option func(*MessageRelay)

// WithPollingInterval 覆盖默认轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 覆盖每次轮询拾取的消息数量
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建一个新的 MessageRelay 实例
func NewMessageRelay(db *gorm.DB, publisher *storage.RabbitMQ, logger *log.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("cv-match-go/outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始消息中继的轮询过程
func (r *MessageRelay) Start() {
	r.logger.Println("MessageRelay starting...")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		for {
			select {
			case <-r.done:
				ticker.Stop()
				r.logger.Println("MessageRelay stopped.")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.logger.Printf("Error processing pending messages: %v", err)
				}
			}
		}
	}()
}

// Stop 优雅地停止消息中继服务
func (r *MessageRelay) Stop() {
	r.logger.Println("MessageRelay stopping...")
	close(r.done)
}

// processPendingMessages 在一个事务里拾取并处理一批待发送消息。
// FOR UPDATE SKIP LOCKED 保证多实例部署时不会重复处理同一行
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		r.logger.Printf("Failed to fetch pending outbox messages: %v", err)
		return err
	}

	// 空轮询不创建Span，直接提交空事务
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	r.logger.Printf("Fetched %d pending messages to process.", len(messages))

	for _, msg := range messages {
		err := r.publisher.PublishMessage(
			ctx,
			msg.TargetExchange,
			msg.TargetRoutingKey,
			[]byte(msg.Payload),
			true, // 持久化投递
		)

		if err != nil {
			r.logger.Printf("Failed to publish message ID %d (AggregateID: %s): %v. Retries: %d", msg.ID, msg.AggregateID, err, msg.RetryCount+1)
			tracing.RecordRabbitMQNack(span, msg.AggregateID, err.Error())
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = models.OutboxStatusFailed
			}
		} else {
			msg.Status = models.OutboxStatusSent
			now := time.Now()
			msg.ProcessedAt = &now
			msg.ErrorMessage = ""
		}

		// 状态更新失败则整个事务回滚，消息留待下次轮询重试
		if err := tx.Save(&msg).Error; err != nil {
			r.logger.Printf("Failed to update outbox message ID %d: %v", msg.ID, err)
			return err
		}
	}

	return tx.Commit().Error
}
