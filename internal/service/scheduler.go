package service

import (
	"context"
	"log"
	"time"
)

// ReindexScheduler triggers periodic catalog rebuilds in the background.
type ReindexScheduler struct {
	indexer  *Indexer
	interval time.Duration
	onStart  bool
	stopChan chan struct{}
}

// NewReindexScheduler creates a scheduler that rebuilds every interval.
func NewReindexScheduler(indexer *Indexer, interval time.Duration, onStart bool) *ReindexScheduler {
	return &ReindexScheduler{
		indexer:  indexer,
		interval: interval,
		onStart:  onStart,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background rebuild loop.
func (s *ReindexScheduler) Start() {
	go s.run()
	log.Printf("[ReindexScheduler] Started - interval: %v, on start: %v", s.interval, s.onStart)
}

// Stop terminates the background loop.
func (s *ReindexScheduler) Stop() {
	close(s.stopChan)
	log.Println("[ReindexScheduler] Stopped")
}

func (s *ReindexScheduler) run() {
	if s.onStart {
		s.rebuild()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.rebuild()
		case <-s.stopChan:
			return
		}
	}
}

func (s *ReindexScheduler) rebuild() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.indexer.Rebuild(ctx); err != nil {
		if err == ErrBuildInProgress {
			log.Println("[ReindexScheduler] Skipping tick, rebuild already running")
			return
		}
		log.Printf("[ReindexScheduler] Scheduled rebuild failed: %v", err)
	}
}
