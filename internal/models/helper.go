package models

import "time"

// AllModels lists every table owned or read by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&AssessmentItem{},
		&AssessmentPaper{},
		&PaperItem{},
		&AssessmentAttempt{},
		&AttemptAnswer{},
		&AttemptResult{},
		&Subscription{},
	}
}

func IntPtr(v int) *int {
	return &v
}

func StringPtr(v string) *string {
	return &v
}

func TimePtr(t time.Time) *time.Time {
	return &t
}
