package sessionreminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/dynamomapper"
	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/sms"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/store"
)

type SessionsStore interface {
	Upcoming(ctx context.Context, from, to time.Time) (store.ScanResult, error)
}

type StudentsStore interface {
	Get(ctx context.Context, name string) (store.Student, error)
}

type RemindersStore interface {
	Exists(ctx context.Context, uid, recipient string) (bool, error)
	Create(ctx context.Context, record store.Record) error
}

// Event is the scheduler payload. Now replays the window as of a past instant.
type Event struct {
	Source string `json:"source,omitempty"`
	Now    string `json:"now,omitempty"`
}

type SessionResult struct {
	Session string `json:"session"`
	Student string `json:"student"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	// Unrecorded counts messages that went out but whose record could not be written.
	Unrecorded int    `json:"unrecorded,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Summary struct {
	Invocation  string          `json:"invocation"`
	WindowStart string          `json:"windowStart"`
	WindowEnd   string          `json:"windowEnd"`
	Scanned     int             `json:"scanned"`
	Invalid     int             `json:"invalid"`
	InWindow    int             `json:"inWindow"`
	Processed   int             `json:"processed"`
	Sent        int             `json:"sent"`
	Failed      int             `json:"failed"`
	Sessions    []SessionResult `json:"sessions"`
}

type Handler struct {
	Sessions  SessionsStore
	Students  StudentsStore
	Reminders RemindersStore
	Sender    sms.Sender
	Config    config.Config
	Logger    logrus.FieldLogger
	// DryRun renders and hands messages to the sender but never writes records.
	DryRun bool
	Clock  func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *Handler) logger() logrus.FieldLogger {
	if h.Logger != nil {
		return h.Logger
	}
	return logrus.StandardLogger()
}

func (h *Handler) Handle(ctx context.Context, event Event) (Summary, error) {
	now := h.now()
	if event.Now != "" {
		override, err := time.Parse(time.RFC3339, event.Now)
		if err != nil {
			return Summary{}, fmt.Errorf("invalid now override %q: %w", event.Now, err)
		}
		now = override
	}
	now = now.UTC()
	windowEnd := now.Add(h.Config.Window)

	summary := Summary{
		Invocation:  uuid.NewString(),
		WindowStart: now.Format(time.RFC3339),
		WindowEnd:   windowEnd.Format(time.RFC3339),
	}
	log := h.logger().WithFields(logrus.Fields{
		"invocation": summary.Invocation,
		"provider":   h.Sender.Name(),
	})
	log.WithFields(logrus.Fields{
		"from": summary.WindowStart,
		"to":   summary.WindowEnd,
	}).Info("scanning for upcoming sessions")

	scan, err := h.Sessions.Upcoming(ctx, now, windowEnd)
	if err != nil {
		log.WithError(err).Error("session scan failed")
		return summary, err
	}
	summary.Scanned = scan.Scanned
	summary.Invalid = len(scan.Invalid)

	for _, invalid := range scan.Invalid {
		log.WithFields(dynamomapper.Fields("item.", invalid.Item)).WithError(invalid.Err).Warn("skipping malformed session")
	}

	var sessions []store.Session
	for _, session := range scan.Sessions {
		if !session.InWindow(now, windowEnd) {
			continue
		}
		summary.InWindow++
		if h.Config.SkipsStatus(session.Status) {
			log.WithFields(logrus.Fields{
				"session": session.Key(),
				"status":  session.Status,
			}).Debug("skipping session by status")
			continue
		}
		sessions = append(sessions, session)
	}

	concurrency := h.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]*SessionResult, len(sessions))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, group := range groupByKey(sessions) {
		// Sessions not yet started when the deadline passes are left for the next run.
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("stopping before all sessions were processed")
			break
		}
		group := group
		// Rows sharing a key share sent records, so they run one after another.
		g.Go(func() error {
			for _, i := range group {
				if ctx.Err() != nil {
					return nil
				}
				results[i] = h.processSession(ctx, log, sessions[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range results {
		if result == nil {
			continue
		}
		summary.Processed++
		summary.Sent += result.Sent
		summary.Failed += result.Failed
		summary.Sessions = append(summary.Sessions, *result)
	}

	log.WithFields(logrus.Fields{
		"scanned":   summary.Scanned,
		"invalid":   summary.Invalid,
		"inWindow":  summary.InWindow,
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
	}).Info("reminder run finished")

	return summary, nil
}

// groupByKey returns indexes into sessions, one slice per session key, in order of
// first appearance.
func groupByKey(sessions []store.Session) [][]int {
	var groups [][]int
	position := make(map[string]int)
	for i, session := range sessions {
		key := session.Key()
		if at, ok := position[key]; ok {
			groups[at] = append(groups[at], i)
			continue
		}
		position[key] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

func (h *Handler) processSession(ctx context.Context, log logrus.FieldLogger, session store.Session) *SessionResult {
	uid := session.Key()
	name := session.StudentName()
	result := &SessionResult{Session: uid, Student: name}
	log = log.WithFields(logrus.Fields{
		"session": uid,
		"student": name,
	})

	if name == "" {
		result.Reason = "no student name in summary"
		log.Warn("skipping session without student name")
		return result
	}

	student, err := h.Students.Get(ctx, name)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			result.Reason = "student not found"
			log.Warn("student not found")
			return result
		}
		result.Reason = "student lookup failed"
		log.WithError(err).Error("student lookup failed")
		return result
	}
	if len(student.Numbers) == 0 {
		result.Reason = "no sms-enabled numbers"
		log.Info("no sms-enabled numbers")
		return result
	}

	message := FormatMessage(h.Config.Brand, session, student.DocURL)

	for _, recipient := range student.Numbers {
		rlog := log.WithField("recipient", recipient)

		sent, err := h.Reminders.Exists(ctx, uid, recipient)
		if err != nil {
			result.Reason = "reminder lookup failed"
			rlog.WithError(err).Error("reminder lookup failed, skipping rest of session")
			return result
		}
		if sent {
			result.Skipped++
			rlog.Debug("reminder already sent")
			continue
		}

		messageID, err := h.Sender.Send(ctx, recipient, message)
		if err != nil {
			result.Failed++
			rlog.WithError(err).WithField("code", pkgerrors.ProviderCode(err)).Error("sending reminder failed")
			continue
		}
		result.Sent++
		rlog = rlog.WithField("messageId", messageID)

		if h.DryRun {
			rlog.Info("dry run, reminder not recorded")
			continue
		}

		record := store.NewRecord(session, recipient, h.Sender.Name(), messageID, h.now(), h.Config.RecordTTL)
		if err := h.Reminders.Create(ctx, record); err != nil {
			if errors.Is(err, pkgerrors.ErrAlreadySent) {
				rlog.Warn("reminder recorded concurrently, treating as already sent")
				continue
			}
			result.Unrecorded++
			rlog.WithError(err).Error("reminder sent but not recorded")
			continue
		}
		rlog.Info("reminder sent")
	}

	return result
}
