// dispatcher.go - Fan-out of newly persisted reports
//
// ReportCreated must only be called once a report is durably stored. The
// realtime push is enqueued synchronously (it never blocks); the email and
// MQTT deliveries run in background goroutines bounded by a timeout. No
// channel can fail the caller or another channel: every failure is logged
// and counted, nothing is returned.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cima-backend/logging"
	"cima-backend/mailer"
	"cima-backend/metrics"
	"cima-backend/models"
	"cima-backend/realtime"
)

// Channel names used in logs and metrics.
const (
	ChannelRealtime = "realtime"
	ChannelEmail    = "email"
	ChannelMQTT     = "mqtt"
)

const defaultTimeout = 15 * time.Second

type Broadcaster interface {
	Broadcast(eventType string, data any) int
}

type RecipientSource interface {
	NotificationRecipients(ctx context.Context) ([]string, error)
}

type Publisher interface {
	Publish(topic string, payload any) error
}

type Options struct {
	Timeout      time.Duration // Per-channel bound for background deliveries
	DashboardURL string        // Link placed in notification emails
	Bridge       Publisher     // Optional MQTT bridge
	BridgeTopic  string
}

type Dispatcher struct {
	hub        Broadcaster     // Live subscribers
	recipients RecipientSource // Opted-in verified addresses
	mail       mailer.Sender
	opts       Options
	wg         sync.WaitGroup // Tracks background deliveries for Wait
}

func New(hub Broadcaster, recipients RecipientSource, mail mailer.Sender, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Dispatcher{hub: hub, recipients: recipients, mail: mail, opts: opts}
}

// ReportCreated distributes a persisted report. It returns as soon as the
// realtime event is queued; email and MQTT continue in the background.
func (d *Dispatcher) ReportCreated(report *models.Report) {
	snapshot := *report // Deliveries work on a copy

	// STEP 1: Realtime push, never blocks
	d.pushRealtime(&snapshot)

	// STEP 2: Email and MQTT in the background
	d.background(ChannelEmail, snapshot.ID, func(ctx context.Context) (string, error) {
		return d.sendEmail(ctx, &snapshot)
	})
	if d.opts.Bridge != nil {
		d.background(ChannelMQTT, snapshot.ID, func(context.Context) (string, error) {
			if err := d.opts.Bridge.Publish(d.opts.BridgeTopic, &snapshot); err != nil {
				return metrics.ResultFailed, err
			}
			return metrics.ResultSent, nil
		})
	}
}

// Wait blocks until all background deliveries finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) pushRealtime(report *models.Report) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Notifications.WithLabelValues(ChannelRealtime, metrics.ResultFailed).Inc()
			logging.Error().Interface("panic", r).Str("report_id", report.ID).Msg("realtime push panicked")
		}
	}()
	n := d.hub.Broadcast(realtime.EventNewReport, report)
	metrics.Notifications.WithLabelValues(ChannelRealtime, metrics.ResultSent).Inc()
	logging.Debug().Str("report_id", report.ID).Int("clients", n).Msg("report broadcast")
}

func (d *Dispatcher) sendEmail(ctx context.Context, report *models.Report) (string, error) {
	emails, err := d.recipients.NotificationRecipients(ctx)
	if err != nil {
		return metrics.ResultFailed, err
	}
	if len(emails) == 0 {
		return metrics.ResultSkipped, nil
	}

	msg, err := mailer.NewReportMessage(emails, mailer.NewReportData{
		Title:       report.Title,
		Category:    report.Category,
		Reporter:    report.CreatedBy.Name,
		Description: report.Description,
		Link:        d.opts.DashboardURL,
	})
	if err != nil {
		return metrics.ResultFailed, err
	}
	if err := d.mail.Send(ctx, msg); err != nil {
		return metrics.ResultFailed, fmt.Errorf("send to %d recipients: %w", len(emails), err)
	}
	return metrics.ResultSent, nil
}

func (d *Dispatcher) background(channel, reportID string, fn func(ctx context.Context) (string, error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.Notifications.WithLabelValues(channel, metrics.ResultFailed).Inc()
				logging.Error().Interface("panic", r).Str("channel", channel).Str("report_id", reportID).Msg("dispatch panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()

		result, err := fn(ctx)
		metrics.Notifications.WithLabelValues(channel, result).Inc()
		if err != nil {
			event := logging.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				event = event.Dur("timeout", d.opts.Timeout)
			}
			event.Err(err).Str("channel", channel).Str("report_id", reportID).Msg("dispatch failed")
			return
		}
		logging.Debug().Str("channel", channel).Str("report_id", reportID).Str("result", result).Msg("dispatch finished")
	}()
}
