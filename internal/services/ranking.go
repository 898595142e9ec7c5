package services

import (
	"context"
	"math"
	"sync"
	"time"

	"podnest/internal/models"
	"podnest/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	rankQueueSize     = 1000
	rankBatchSize     = 50
	rankFlushInterval = 500 * time.Millisecond
)

// RankingService 异步重算 pods.popularity_score
// 同一 pod 在队列中只会出现一次
type RankingService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time

	queue   chan uint
	pending map[uint]bool
	mu      sync.Mutex
}

func NewRankingService(db *gorm.DB, log *zap.Logger) *RankingService {
	return &RankingService{
		db:      db,
		log:     log,
		now:     time.Now,
		queue:   make(chan uint, rankQueueSize), // 缓冲队列，防止阻塞
		pending: make(map[uint]bool),
	}
}

// Start launches the background worker. Once ctx is cancelled the worker
// flushes whatever is still queued and exits.
func (s *RankingService) Start(ctx context.Context) {
	go s.worker(ctx)
}

// ScheduleUpdate 将 pod 加入更新队列（非阻塞）
func (s *RankingService) ScheduleUpdate(podID uint) {
	s.mu.Lock()
	if s.pending[podID] {
		s.mu.Unlock()
		return
	}
	s.pending[podID] = true
	s.mu.Unlock()

	select {
	case s.queue <- podID:
	default:
		s.mu.Lock()
		delete(s.pending, podID)
		s.mu.Unlock()
		s.log.Warn("ranking queue full, skipping pod", zap.Uint("pod_id", podID))
	}
}

func (s *RankingService) worker(ctx context.Context) {
	batch := make([]uint, 0, rankBatchSize)
	ticker := time.NewTicker(rankFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case podID := <-s.queue:
			batch = append(batch, podID)
			if len(batch) >= rankBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			// 退出前处理剩余的
			s.drain(batch)
			return
		}
	}
}

func (s *RankingService) drain(batch []uint) {
	for {
		select {
		case podID := <-s.queue:
			batch = append(batch, podID)
		default:
			if len(batch) > 0 {
				s.processBatch(context.Background(), batch)
			}
			return
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, podIDs []uint) {
	for _, podID := range podIDs {
		if err := s.UpdatePodScore(ctx, podID); err != nil {
			s.log.Error("update popularity failed", zap.Uint("pod_id", podID), zap.Error(err))
		}

		s.mu.Lock()
		delete(s.pending, podID)
		s.mu.Unlock()
	}
}

// UpdatePodScore recomputes one pod synchronously.
func (s *RankingService) UpdatePodScore(ctx context.Context, podID uint) error {
	tx := s.db.WithContext(ctx)

	var pod models.Pod
	if err := tx.Where("pod_id = ?", podID).Take(&pod).Error; err != nil {
		return storageErr("load pod for ranking", err)
	}

	var likes int64
	err := tx.Model(&models.Story{}).
		Select("COALESCE(SUM(likes_count), 0)").
		Where("pod_id = ?", podID).
		Scan(&likes).Error
	if err != nil {
		return storageErr("sum pod likes", err)
	}

	score := utils.CalculatePopularity(pod.CreatedAt, pod.FollowersCount, pod.TotalStories, int(likes), s.now())
	err = tx.Model(&models.Pod{}).
		Where("pod_id = ?", podID).
		UpdateColumn("popularity_score", int(math.Round(score))).Error
	return storageErr("update popularity", err)
}

// RecomputeAll 重算所有 pod 的热度，返回处理数量
func (s *RankingService) RecomputeAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Pod{}).Order("pod_id").Pluck("pod_id", &ids).Error; err != nil {
		return 0, storageErr("list pods for ranking", err)
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.UpdatePodScore(ctx, id); err != nil {
			return i, err
		}
	}
	s.log.Info("popularity recomputed", zap.Int("pods", len(ids)))
	return len(ids), nil
}
