package contact

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

var (
	// errors
	ErrNotFound      = errors.New("message not found")
	ErrInvalidStatus = errors.New("invalid message status")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		QueryMessages(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Message, error)
		UpdateMessage(ctx context.Context, msg Message) (Message, error)
		DeleteMessagesByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		// Submit records a contact form submission and notifies the association inbox.
		Submit(ctx context.Context, nm NewMessage) (Message, error)
		Get(ctx context.Context, id string) (Message, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Message, error)
		MarkRead(ctx context.Context, id string) (Message, error)
		// SendReply emails the response to the sender and marks the message replied.
		SendReply(ctx context.Context, id string, reply Reply) (Message, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *service) Submit(ctx context.Context, nm NewMessage) (Message, error) {
	msg := Message{
		Name:      nm.Name,
		Email:     nm.Email,
		Subject:   nm.Subject,
		Body:      nm.Message,
		Status:    StatusNew,
		CreatedAt: time.Now().UTC(),
	}
	msg, err := svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: svc.conf.AppName, Address: svc.conf.ContactEmail}},
		Subject: fmt.Sprintf("[Website Contact Form] %s", msg.Subject),
		BodyStr: fmt.Sprintf(
			"You have received a new message from the contact form on your website:\n\n"+
				"Name: %s\nEmail: %s\nSubject: %s\n\nMessage:\n%s\n",
			msg.Name, msg.Email, msg.Subject, msg.Body),
	})
	return msg, nil
}

func (svc *service) Get(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: false}})
}

func (svc *service) MarkRead(ctx context.Context, id string) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.Status == StatusNew {
		msg.Status = StatusRead
		if msg, err = svc.repo.UpdateMessage(ctx, msg); err != nil {
			return Message{}, errors.Wrap(err, "updating message")
		}
	}
	return msg, nil
}

func (svc *service) SendReply(ctx context.Context, id string, reply Reply) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}

	msg.Reply = reply.Reply
	msg.Status = StatusReplied
	msg.RepliedAt = time.Now().UTC()

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: msg.Name, Address: msg.Email}},
		Subject: fmt.Sprintf("Re: %s", msg.Subject),
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nThank you for contacting us. Here is our response to your message:\n\n%s\n\n"+
				"Your original message:\n%s\n",
			msg.Name, msg.Reply, msg.Body),
	})

	msg, err = svc.repo.UpdateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "updating message")
	}
	return msg, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteMessagesByID(ctx, ids...)
}
