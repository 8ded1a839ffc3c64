package job

import (
	"context"
	"log"
	"time"

	"walletsystem/internal/config"
	"walletsystem/internal/infrastructure/mq"
	"walletsystem/internal/model"
	"walletsystem/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 账本事件投递任务
// 轮询发件箱里的 PENDING 事件投递到 Kafka。
// 事件行是和余额变动一起提交的，这里只负责"至少一次"送达，
// 下游按流水号去重
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 账本事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-ticker.C:
			s.processPending(ctx)
		}
	}
}

func (s *OutboxSender) processPending(ctx context.Context) {
	messages, err := s.outboxRepo.ListPending(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询待投递事件失败: %v", err)
		return
	}

	for _, msg := range messages {
		s.send(ctx, msg)
	}
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新事件状态失败: id=%d, err=%v", msg.ID, updateErr)
		}
		return
	}

	log.Printf("[OutboxSender] 事件投递失败: id=%d, key=%s, err=%v", msg.ID, msg.MessageKey, err)

	if err := s.outboxRepo.MarkRetry(ctx, msg, s.cfg.Business.OutboxMaxRetryCount); err != nil {
		log.Printf("[OutboxSender] 更新重试次数失败: id=%d, err=%v", msg.ID, err)
	}
}
