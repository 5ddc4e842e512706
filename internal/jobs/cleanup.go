package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// IdleRoomDeleter is the slice of the room store the cleanup job needs.
type IdleRoomDeleter interface {
	DeleteIdle(ctx context.Context, idleFor time.Duration) (int64, error)
}

// CleanupJob removes abandoned rooms. A room with no mutation for the
// configured TTL is deleted; history entries survive.
type CleanupJob struct {
	roomRepo IdleRoomDeleter
	interval time.Duration
	roomTTL  time.Duration
	done     chan struct{}
}

func NewCleanupJob(roomRepo IdleRoomDeleter, interval, roomTTL time.Duration) *CleanupJob {
	return &CleanupJob{
		roomRepo: roomRepo,
		interval: interval,
		roomTTL:  roomTTL,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("roomTTL", j.roomTTL).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.roomRepo.DeleteIdle(ctx, j.roomTTL)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup idle rooms")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up idle rooms")
	}
}
