package bulkmail

import (
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

var (
	// errors
	ErrJobNotFound    = errors.New("job not found")
	ErrJobDone        = errors.New("job already finished")
	ErrNoRecipients   = errors.New("no recipients found")
	ErrRunnerShutdown = errors.New("runner is shutting down")
)

// Job states
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

// Job tracks the progress of a bulk email send.
type Job struct {
	ID         string    `json:"id"`
	Category   string    `json:"category,omitempty"`
	Subject    string    `json:"subject"`
	Total      int       `json:"total"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`            // UTC
	FinishedAt time.Time `json:"finished_at,omitempty"` // UTC; zero while in flight
}

func (j Job) finished() bool {
	return j.State == StateDone || j.State == StateCancelled
}

// Runner sends bulk emails in background goroutines and keeps
// per-job progress that can be polled and cancelled by ID.
type Runner struct {
	mailSvc core.EmailService
	logger  core.Logger
	send    func(msg *core.EmailMessage) error

	mtx       sync.RWMutex
	jobs      map[string]*Job
	cancelled map[string]bool
	wg        sync.WaitGroup
	closed    bool
}

func NewRunner(mailSvc core.EmailService, logger core.Logger) *Runner {
	r := &Runner{
		mailSvc:   mailSvc,
		logger:    logger,
		jobs:      make(map[string]*Job),
		cancelled: make(map[string]bool),
	}
	r.send = r.renderAndSend
	return r
}

// renderAndSend renders the message up front so a broken message counts as
// a per-recipient failure instead of vanishing in the fire-and-forget
// email service.
func (r *Runner) renderAndSend(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering message")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return errors.New("nothing to send")
	}
	r.mailSvc.SendMessages(msg)
	return nil
}

// Enqueue starts a background send of subject/body to every recipient
// and returns the job ID to poll.
func (r *Runner) Enqueue(category, subject, body string, recipients []mail.Address) (string, error) {
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}

	r.mtx.Lock()
	if r.closed {
		r.mtx.Unlock()
		return "", ErrRunnerShutdown
	}
	job := &Job{
		ID:        uuid.New().String(),
		Category:  category,
		Subject:   subject,
		Total:     len(recipients),
		State:     StateQueued,
		StartedAt: time.Now().UTC(),
	}
	r.jobs[job.ID] = job
	r.wg.Add(1)
	r.mtx.Unlock()

	go r.run(job.ID, subject, body, recipients)
	return job.ID, nil
}

func (r *Runner) run(id, subject, body string, recipients []mail.Address) {
	defer r.wg.Done()

	r.setState(id, StateRunning)
	for _, rcpt := range recipients {
		if r.isCancelled(id) {
			r.finish(id, StateCancelled)
			return
		}
		// one message per recipient so addresses are not exposed to each other
		err := r.send(&core.EmailMessage{
			To:      []mail.Address{rcpt},
			Subject: subject,
			BodyStr: body,
		})
		if err != nil {
			r.logger.Error(fmt.Sprintf("sending bulk email to %s: %v", rcpt.Address, err), err)
			r.incrFailed(id)
			continue
		}
		r.incrSent(id)
	}
	r.finish(id, StateDone)
}

// Get returns a snapshot of the job's progress.
func (r *Runner) Get(id string) (Job, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Cancel stops an in-flight job before its next send.
func (r *Runner) Cancel(id string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.finished() {
		return ErrJobDone
	}
	r.cancelled[id] = true
	return nil
}

// Close cancels all in-flight jobs and waits for their goroutines.
func (r *Runner) Close() {
	r.mtx.Lock()
	r.closed = true
	for id, job := range r.jobs {
		if !job.finished() {
			r.cancelled[id] = true
		}
	}
	r.mtx.Unlock()
	r.wg.Wait()
}

func (r *Runner) isCancelled(id string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.cancelled[id]
}

func (r *Runner) setState(id string, state State) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = state
	}
}

func (r *Runner) incrSent(id string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Sent++
	}
}

func (r *Runner) incrFailed(id string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Failed++
	}
}

func (r *Runner) finish(id string, state State) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = state
		job.FinishedAt = time.Now().UTC()
	}
}
