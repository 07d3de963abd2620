package sessionreminder

import (
	"fmt"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/pkg/features/store"
)

const clockLayout = "3:04 PM"

// FormatMessage renders the reminder text with times in the session's own zone.
func FormatMessage(brand string, session store.Session, docURL string) string {
	return fmt.Sprintf(
		"(AWS) Hello, this is a reminder for %s with %s today from %s to %s.\n\nMeeting info: %s.",
		session.Summary,
		brand,
		session.Start.In(session.Location).Format(clockLayout),
		session.End.In(session.Location).Format(clockLayout),
		docURL,
	)
}
