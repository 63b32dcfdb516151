package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/comply/internal/engine"
)

// Worker consumes recalculation jobs and runs them through the engine with
// a bounded pool of processors. Two workers racing on the same entity are
// harmless: the loser's save hits the state version check and the job is
// simply retried against the fresher state.
type Worker struct {
	id          string
	queue       *Queue
	engine      *engine.Engine
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
	mu      sync.Mutex
}

type WorkerConfig struct {
	Queue       *Queue
	Engine      *engine.Engine
	Concurrency int
}

func NewWorker(cfg WorkerConfig) *Worker {
	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Worker{
		id:          workerID,
		queue:       cfg.Queue,
		engine:      cfg.Engine,
		concurrency: concurrency,
	}
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	log.Printf("[%s] Worker starting with %d processors", w.id, w.concurrency)

	w.wg.Add(1)
	go w.heartbeatLoop()

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop()
	}

	w.wg.Add(1)
	go w.staleJobSweeper()

	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("[%s] Worker stopping", w.id)
	w.cancel()
	w.wg.Wait()
	log.Printf("[%s] Worker stopped", w.id)
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.queue.WorkerHeartbeat(w.ctx, w.id)
		}
	}
}

func (w *Worker) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(w.ctx, w.id)
			if err != nil {
				log.Printf("[%s] Error dequeuing job: %v", w.id, err)
				time.Sleep(5 * time.Second)
				continue
			}

			if job == nil {
				time.Sleep(1 * time.Second)
				continue
			}

			log.Printf("[%s] Processing job %s (entity: %s, trigger: %s)",
				w.id, job.ID, job.EntityID, job.Trigger)

			if err := w.processJob(job); err != nil {
				log.Printf("[%s] Job %s failed: %v", w.id, job.ID, err)
				w.queue.RequeueJob(w.ctx, job, err.Error())
			} else {
				log.Printf("[%s] Job %s completed successfully", w.id, job.ID)
				w.queue.CompleteJob(w.ctx, job, true)
			}
		}
	}
}

func (w *Worker) processJob(job *Job) error {
	asOf := job.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	_, err := w.engine.Recalculate(w.ctx, job.EntityID, asOf, job.Trigger)
	return err
}

func (w *Worker) staleJobSweeper() {
	defer w.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			cleaned, err := w.queue.CleanupStaleJobs(w.ctx, 30*time.Minute)
			if err != nil {
				log.Printf("[%s] Error cleaning stale jobs: %v", w.id, err)
			} else if cleaned > 0 {
				log.Printf("[%s] Cleaned up %d stale jobs", w.id, cleaned)
			}
		}
	}
}
