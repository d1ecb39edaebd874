package bulkmail

import (
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/adamsassn/membership/core"
)

type mailSvcMock struct {
	mtx     sync.Mutex
	sent    []*core.EmailMessage
	delay   time.Duration
	started chan struct{} // when set, signals each send as it begins
	proceed chan struct{} // when set, blocks each send until signalled
}

func (svc *mailSvcMock) SendMessages(messages ...*core.EmailMessage) {
	if svc.started != nil {
		svc.started <- struct{}{}
	}
	if svc.proceed != nil {
		<-svc.proceed
	}
	if svc.delay > 0 {
		time.Sleep(svc.delay)
	}
	svc.mtx.Lock()
	defer svc.mtx.Unlock()
	svc.sent = append(svc.sent, messages...)
}

func (svc *mailSvcMock) sentCount() int {
	svc.mtx.Lock()
	defer svc.mtx.Unlock()
	return len(svc.sent)
}

type loggerMock struct{}

func (l loggerMock) Debug(msg string, args ...interface{}) {}
func (l loggerMock) Info(msg string, args ...interface{})  {}
func (l loggerMock) Warn(msg string, args ...interface{})  {}
func (l loggerMock) Error(msg string, args ...interface{}) {}
func (l loggerMock) Fatal(msg string, args ...interface{}) {}

func recipients(n int) []mail.Address {
	rcpts := make([]mail.Address, 0, n)
	for i := 0; i < n; i++ {
		rcpts = append(rcpts, mail.Address{Address: fmt.Sprintf("member%02d@test.com", i)})
	}
	return rcpts
}

func waitFinished(t *testing.T, r *Runner, id string) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := r.Get(id)
		assert.NoError(t, err)
		if job.finished() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return Job{}
}

func TestRunnerEnqueue(t *testing.T) {
	mailSvc := &mailSvcMock{}
	r := NewRunner(mailSvc, loggerMock{})
	defer r.Close()

	_, err := r.Enqueue("Student", "Hey", "body", nil)
	assert.Equal(t, ErrNoRecipients, err)

	id, err := r.Enqueue("Student", "Hey", "body", recipients(5))
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	job := waitFinished(t, r, id)
	assert.Equal(t, StateDone, job.State)
	assert.Equal(t, 5, job.Total)
	assert.Equal(t, 5, job.Sent)
	assert.Equal(t, 0, job.Failed)
	assert.False(t, job.FinishedAt.IsZero())
	assert.Equal(t, 5, mailSvc.sentCount())

	// each recipient gets their own message
	for _, msg := range mailSvc.sent {
		assert.Len(t, msg.To, 1)
		assert.Equal(t, "Hey", msg.Subject)
	}
}

func TestRunnerFailedSends(t *testing.T) {
	mailSvc := &mailSvcMock{}
	r := NewRunner(mailSvc, loggerMock{})
	defer r.Close()

	// fail a couple of recipients; the rest go through
	sendErr := errors.New("mailbox unavailable")
	r.send = func(msg *core.EmailMessage) error {
		switch msg.To[0].Address {
		case "member01@test.com", "member03@test.com":
			return sendErr
		}
		return r.renderAndSend(msg)
	}

	id, err := r.Enqueue("Student", "Hey", "body", recipients(5))
	assert.NoError(t, err)

	job := waitFinished(t, r, id)
	assert.Equal(t, StateDone, job.State)
	assert.Equal(t, 5, job.Total)
	assert.Equal(t, 3, job.Sent)
	assert.Equal(t, 2, job.Failed)
	assert.Equal(t, 3, mailSvc.sentCount())
}

func TestRunnerGet(t *testing.T) {
	r := NewRunner(&mailSvcMock{}, loggerMock{})
	defer r.Close()

	_, err := r.Get("deadbeef")
	assert.Equal(t, ErrJobNotFound, err)
}

func TestRunnerCancel(t *testing.T) {
	mailSvc := &mailSvcMock{started: make(chan struct{}), proceed: make(chan struct{})}
	r := NewRunner(mailSvc, loggerMock{})
	defer r.Close()

	assert.Equal(t, ErrJobNotFound, r.Cancel("deadbeef"))

	id, err := r.Enqueue("Student", "Hey", "body", recipients(10))
	assert.NoError(t, err)

	// cancel while the first send is still in flight,
	// then release it; the job must stop before the next one
	<-mailSvc.started
	assert.NoError(t, r.Cancel(id))
	close(mailSvc.proceed)

	job := waitFinished(t, r, id)
	assert.Equal(t, StateCancelled, job.State)
	assert.Equal(t, 1, job.Sent)

	assert.Equal(t, ErrJobDone, r.Cancel(id))
}

func TestRunnerClose(t *testing.T) {
	mailSvc := &mailSvcMock{delay: 2 * time.Millisecond}
	r := NewRunner(mailSvc, loggerMock{})

	id, err := r.Enqueue("Student", "Hey", "body", recipients(50))
	assert.NoError(t, err)

	r.Close()

	job, err := r.Get(id)
	assert.NoError(t, err)
	assert.True(t, job.finished())

	_, err = r.Enqueue("Student", "Hey", "body", recipients(1))
	assert.Equal(t, ErrRunnerShutdown, err)
}
