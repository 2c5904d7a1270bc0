package domain

// SendMessageCommand carries a send intent from a session into the
// per-course dispatch pipeline.
type SendMessageCommand struct {
	Course  CourseID
	Session Session
	Content string
}

// HistoryQuery is a bounded ordered read of a course transcript.
// Results come back ascending by order key.
type HistoryQuery struct {
	Course CourseID
	Limit  int
}
