package sessionreminder_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/config"
	pkgerrors "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/errors"
	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/store"
	sessionreminder "github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/handlers/session-reminder"
)

var now = time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

type mockSessions struct {
	result store.ScanResult
	err    error
	from   time.Time
	to     time.Time
}

func (m *mockSessions) Upcoming(ctx context.Context, from, to time.Time) (store.ScanResult, error) {
	m.from, m.to = from, to
	return m.result, m.err
}

type mockStudents struct {
	sync.Mutex
	students map[string]store.Student
	failing  map[string]error
	lookups  []string
}

func (m *mockStudents) Get(ctx context.Context, name string) (store.Student, error) {
	m.Lock()
	defer m.Unlock()
	m.lookups = append(m.lookups, name)
	if err, ok := m.failing[name]; ok {
		return store.Student{}, err
	}
	student, ok := m.students[name]
	if !ok {
		return store.Student{}, pkgerrors.ErrNotFound
	}
	return student, nil
}

type mockReminders struct {
	sync.Mutex
	records   map[string]store.Record
	existsErr error
	createErr error
	// raceOn makes Create report a concurrent write for this recipient.
	raceOn string
}

func newMockReminders() *mockReminders {
	return &mockReminders{records: make(map[string]store.Record)}
}

func (m *mockReminders) Exists(ctx context.Context, uid, recipient string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.records[uid+"|"+recipient]
	return ok, nil
}

func (m *mockReminders) Create(ctx context.Context, record store.Record) error {
	m.Lock()
	defer m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if record.Recipient == m.raceOn {
		return pkgerrors.ErrAlreadySent
	}
	k := record.UID + "|" + record.Recipient
	if _, ok := m.records[k]; ok {
		return pkgerrors.ErrAlreadySent
	}
	m.records[k] = record
	return nil
}

type sentMessage struct {
	To   string
	Body string
}

type mockSender struct {
	sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
	delay   time.Duration
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, to, body string) (string, error) {
	time.Sleep(m.delay)
	m.Lock()
	defer m.Unlock()
	if m.failFor[to] {
		return "", errors.New("provider rejected number")
	}
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return "SM-" + to, nil
}

func (m *mockSender) recipients() []string {
	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	return out
}

func session(t *testing.T, summary string, startIn time.Duration, status string) store.Session {
	location, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := now.Add(startIn)
	return store.Session{
		SessionID: strings.ToLower(summary),
		TutorID:   "tutor-1",
		Status:    status,
		Summary:   summary,
		Timezone:  "America/New_York",
		Start:     start,
		End:       start.Add(time.Hour),
		Location:  location,
	}
}

type fixture struct {
	sessions  *mockSessions
	students  *mockStudents
	reminders *mockReminders
	sender    *mockSender
	hook      *test.Hook
	handler   *sessionreminder.Handler
}

func newFixture(sessions ...store.Session) *fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		sessions: &mockSessions{result: store.ScanResult{Scanned: len(sessions), Sessions: sessions}},
		students: &mockStudents{students: map[string]store.Student{
			"Alice": {Name: "Alice", DocURL: "https://docs.example.com/alice", Numbers: []string{"+15550000001", "+15550000002"}},
			"Bob":   {Name: "Bob", DocURL: "N/A", Numbers: []string{"+15550000003"}},
			"Carol": {Name: "Carol", DocURL: "N/A"},
		}},
		reminders: newMockReminders(),
		sender:    &mockSender{},
		hook:      hook,
	}
	f.handler = &sessionreminder.Handler{
		Sessions:  f.sessions,
		Students:  f.students,
		Reminders: f.reminders,
		Sender:    f.sender,
		Config: config.Config{
			Window:       4 * time.Hour,
			Concurrency:  2,
			Brand:        "MathPracs",
			SkipStatuses: config.DefaultSkipStatuses,
			RecordTTL:    time.Hour,
		},
		Logger: logger,
		Clock:  func() time.Time { return now },
	}
	return f
}

func TestHandleSendsToEnabledRecipients(t *testing.T) {
	f := newFixture(
		session(t, "Alice Tutoring", time.Hour, "confirmed"),
		session(t, "Bob Tutoring", 4*time.Hour, "confirmed"),
	)

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"+15550000001", "+15550000002", "+15550000003"}, f.sender.recipients())
	assert.Len(t, f.reminders.records, 3)
	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.InWindow)
	assert.Equal(t, now, f.sessions.from)
	assert.Equal(t, now.Add(4*time.Hour), f.sessions.to)

	for _, record := range f.reminders.records {
		assert.Equal(t, "mock", record.Provider)
		assert.Equal(t, "SM-"+record.Recipient, record.MessageID)
	}
}

func TestHandleIgnoresSessionsOutsideWindow(t *testing.T) {
	f := newFixture(
		session(t, "Alice Tutoring", -time.Minute, "confirmed"),
		session(t, "Bob Tutoring", 4*time.Hour+time.Second, "confirmed"),
	)

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.students.lookups)
	assert.Equal(t, 0, summary.InWindow)
	assert.Equal(t, 2, summary.Scanned)
}

func TestHandleSkipsCancelledSessions(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "Cancelled"))

	_, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.students.lookups)
}

func TestHandleIsIdempotent(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "confirmed"))

	first, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	second, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	assert.Equal(t, 2, first.Sent)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 2, second.Sessions[0].Skipped)
	assert.Len(t, f.sender.sent, 2)
}

func TestHandleSameKeyRowsSendOnce(t *testing.T) {
	first := session(t, "Bob Tutoring", time.Hour, "confirmed")
	second := first
	second.SessionID = "bob-duplicate"
	require.Equal(t, first.Key(), second.Key())

	f := newFixture(first, second)
	f.handler.Config.Concurrency = 2
	f.sender.delay = 20 * time.Millisecond

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	assert.Equal(t, []string{"+15550000003"}, f.sender.recipients())
	assert.Len(t, f.reminders.records, 1)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, summary.Sessions, 2)
	assert.Equal(t, 1, summary.Sessions[1].Skipped)
}

func TestHandleExistingRecordPreventsSend(t *testing.T) {
	alice := session(t, "Alice Tutoring", time.Hour, "confirmed")
	f := newFixture(alice)
	f.reminders.records[alice.Key()+"|+15550000001"] = store.Record{UID: alice.Key(), Recipient: "+15550000001"}

	_, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550000002"}, f.sender.recipients())
}

func TestHandleProviderFailureWritesNoRecord(t *testing.T) {
	alice := session(t, "Alice Tutoring", time.Hour, "confirmed")
	f := newFixture(alice)
	f.sender.failFor = map[string]bool{"+15550000001": true}

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	_, recorded := f.reminders.records[alice.Key()+"|+15550000001"]
	assert.False(t, recorded)
	_, recorded = f.reminders.records[alice.Key()+"|+15550000002"]
	assert.True(t, recorded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Sent)

	// The failed recipient is retried by the next run.
	f.sender.failFor = nil
	summary, err = f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Len(t, f.reminders.records, 2)
}

func TestHandleStudentLookupFailureIsIsolated(t *testing.T) {
	f := newFixture(
		session(t, "Alice Tutoring", time.Hour, "confirmed"),
		session(t, "Bob Tutoring", 2*time.Hour, "confirmed"),
		session(t, "Dave Tutoring", 2*time.Hour, "confirmed"),
		session(t, "Carol Tutoring", 3*time.Hour, "confirmed"),
	)
	f.students.failing = map[string]error{"Alice": errors.New("throttled")}

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)

	assert.Equal(t, []string{"+15550000003"}, f.sender.recipients())
	require.Len(t, summary.Sessions, 4)

	reasons := map[string]string{}
	for _, result := range summary.Sessions {
		reasons[result.Student] = result.Reason
	}
	assert.Equal(t, "student lookup failed", reasons["Alice"])
	assert.Equal(t, "", reasons["Bob"])
	assert.Equal(t, "student not found", reasons["Dave"])
	assert.Equal(t, "no sms-enabled numbers", reasons["Carol"])
}

func TestHandleReminderLookupFailureSkipsSession(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "confirmed"))
	f.reminders.existsErr = errors.New("throttled")

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, "reminder lookup failed", summary.Sessions[0].Reason)
}

func TestHandleConcurrentWriteIsAlreadySent(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "confirmed"))
	f.reminders.raceOn = "+15550000001"

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sessions[0].Unrecorded)

	var warned bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "already sent") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestHandleRecordWriteFailure(t *testing.T) {
	f := newFixture(session(t, "Bob Tutoring", time.Hour, "confirmed"))
	f.reminders.createErr = errors.New("throttled")

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Sessions[0].Unrecorded)
}

func TestHandleScanFailure(t *testing.T) {
	f := newFixture()
	f.sessions.err = errors.New("access denied")

	_, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	assert.Error(t, err)
}

func TestHandleLogsMalformedSessions(t *testing.T) {
	f := newFixture()
	f.sessions.result.Invalid = []store.InvalidItem{{
		Item: map[string]types.AttributeValue{"sessionId": &types.AttributeValueMemberS{Value: "broken"}},
		Err:  errors.New("session lacks utcStart, utcEnd or timezone"),
	}}

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Invalid)

	var found bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Message == "skipping malformed session" {
			found = true
			assert.Equal(t, "broken", entry.Data["item.sessionId"])
		}
	}
	assert.True(t, found)
}

func TestHandleNowOverride(t *testing.T) {
	f := newFixture()

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{Now: "2024-04-30T09:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30T09:00:00Z", summary.WindowStart)
	assert.Equal(t, "2024-04-30T13:00:00Z", summary.WindowEnd)

	_, err = f.handler.Handle(context.Background(), sessionreminder.Event{Now: "yesterday"})
	assert.Error(t, err)
}

func TestHandleDryRun(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "confirmed"))
	f.handler.DryRun = true

	summary, err := f.handler.Handle(context.Background(), sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
	assert.Empty(t, f.reminders.records)
}

func TestHandleCancelledContext(t *testing.T) {
	f := newFixture(session(t, "Alice Tutoring", time.Hour, "confirmed"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.handler.Handle(ctx, sessionreminder.Event{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, f.sender.sent)
}

func TestFormatMessage(t *testing.T) {
	alice := session(t, "Alice Tutoring", 5*time.Hour, "confirmed")

	message := sessionreminder.FormatMessage("MathPracs", alice, "https://docs.example.com/alice")
	expected := "(AWS) Hello, this is a reminder for Alice Tutoring with MathPracs today from 2:00 PM to 3:00 PM.\n\nMeeting info: https://docs.example.com/alice."
	if message != expected {
		t.Errorf("Expected message %q but got %q", expected, message)
	}
}
