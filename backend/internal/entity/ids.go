package entity

import (
	"strings"

	"github.com/google/uuid"
)

// DateLayout is the meeting date format
const DateLayout = "2006-01-02"

// namespace scopes every generated id to this archive
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:meeting-graph:entity"))

// NewID derives a stable id from the natural key of a record.
// The same key always yields the same id, which keeps the on-disk layout reproducible
// across re-ingestion of the same sources.
func NewID(t Type, parts ...string) string {
	key := string(t) + "\x1f" + strings.Join(parts, "\x1f")
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

// MeetingPersonID is the id of the junction row linking meeting and person
func MeetingPersonID(meetingID, personID string) string {
	return NewID(TypeMeetingPerson, meetingID, personID)
}
