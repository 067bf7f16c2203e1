package store

import (
	"context"
	"log"
	"time"

	"imagechat-backend/internal/models"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollLimit    = 60
)

// WatchTask polls a task until it reaches a terminal status and streams each
// observed state. Polling is bounded: after the attempt limit the channel
// closes even if the task is still processing, so a stuck task cannot leak a
// goroutine. The returned stop function ends the watch early.
func (s *Store) WatchTask(ctx context.Context, taskID string) (<-chan models.TaskResponse, func()) {
	updates := make(chan models.TaskResponse, 1)
	stop := make(chan struct{})

	s.watchMu.Lock()
	if s.closed {
		s.watchMu.Unlock()
		close(updates)
		return updates, func() {}
	}
	if prev, ok := s.watches[taskID]; ok {
		close(prev)
	}
	s.watches[taskID] = stop
	s.wg.Add(1)
	s.watchMu.Unlock()

	interval := s.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	limit := s.pollLimit
	if limit <= 0 {
		limit = defaultPollLimit
	}

	go func() {
		defer s.wg.Done()
		defer close(updates)
		defer s.forgetWatch(taskID, stop)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for attempt := 0; attempt < limit; attempt++ {
			task, err := s.backend.GetTask(ctx, taskID)
			if err != nil {
				log.Printf("Task %s poll failed: %v", taskID, err)
			} else {
				select {
				case updates <- *task:
				default:
				}
				s.notify(Event{Type: EventTask, TaskID: taskID})
				if task.Status != models.TaskStatusProcessing {
					return
				}
			}

			select {
			case <-ticker.C:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, func() { s.forgetWatch(taskID, stop) }
}

// forgetWatch closes the watch's stop channel once and unregisters it.
func (s *Store) forgetWatch(taskID string, stop chan struct{}) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if current, ok := s.watches[taskID]; ok && current == stop {
		delete(s.watches, taskID)
		close(stop)
	}
}

// Close stops every running watch and waits for their goroutines to exit.
// The store must not be used afterwards.
func (s *Store) Close() {
	s.watchMu.Lock()
	if s.closed {
		s.watchMu.Unlock()
		return
	}
	s.closed = true
	for taskID, stop := range s.watches {
		delete(s.watches, taskID)
		close(stop)
	}
	s.watchMu.Unlock()

	s.wg.Wait()
}
