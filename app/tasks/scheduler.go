package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tmthyln/iris/app/cfg"
	"github.com/tmthyln/iris/app/database"
)

// Scheduler periodically enumerates active feeds and publishes refresh
// tasks, plus content-extraction tasks for blogs.
type Scheduler struct {
	feeds     database.FeedRepository
	publisher *Publisher
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewScheduler(feeds database.FeedRepository, publisher *Publisher) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		feeds:     feeds,
		publisher: publisher,
		interval:  time.Duration(cfg.Get().SchedulerInterval) * time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.publishTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.publishTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) publishTasks() {
	feeds, err := s.feeds.GetActiveFeeds()
	if err != nil {
		slog.Error("Failed to list active feeds for scheduling", "error", err)
		return
	}

	for _, fd := range feeds {
		if err := s.publisher.Publish(TopicRefreshFeed, RefreshFeedTask{FeedGUID: fd.GUID}); err != nil {
			slog.Warn("Failed to publish refresh task", "feed", fd.GUID, "error", err)
		}

		if fd.Type == database.FeedTypeBlog {
			if err := s.publisher.Publish(TopicExtractContent, ExtractContentTask{FeedGUID: fd.GUID}); err != nil {
				slog.Warn("Failed to publish extract-content task", "feed", fd.GUID, "error", err)
			}
		}
	}

	slog.Debug("Scheduled feed refreshes", "count", len(feeds))
}
