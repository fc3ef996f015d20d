package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-mailinglist/app/dto"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
)

// Publisher enqueues one message and returns its stream ID.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) (string, error)
}

type MailingListController struct {
	producer Publisher
	log      logrus.FieldLogger
}

// NewMailingListController constructs the HTTP mailing list controller.
func NewMailingListController(producer Publisher, log logrus.FieldLogger) *MailingListController {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MailingListController{producer: producer, log: log}
}

// Subscribe enqueues a verification email.
func (c *MailingListController) Subscribe(ctx echo.Context) error {
	return c.enqueue(ctx, queue.KindSubscribe)
}

// DailyTopic enqueues the topic of the day for one subscriber.
func (c *MailingListController) DailyTopic(ctx echo.Context) error {
	return c.enqueue(ctx, queue.KindDailyTopic)
}

func (c *MailingListController) enqueue(ctx echo.Context, kind queue.Kind) error {
	req, err := dto.FromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	msg, err := req.ToMessage(kind)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	id, err := c.producer.Publish(ctx.Request().Context(), msg)
	log := c.log.WithFields(logrus.Fields{
		"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
		"kind":       kind,
		"recipient":  msg.Recipient(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to queue email")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue email"})
	}

	log.WithField("message_id", id).Info("Queued email")
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Sent message to the queue"})
}
