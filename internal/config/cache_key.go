package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the key holding the active token id of a logged-in user.
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// SessionSnapshotKey returns the key of the autosaved answers/flags snapshot
// of one student's attempt at one exam.
func (r *CacheKeyStruct) SessionSnapshotKey(examID, studentID string) string {
	return fmt.Sprintf("session:exam:%s:student:%s:snapshot", examID, studentID)
}

// SessionResultKey returns the key of the last computed result of one attempt,
// read by the results view.
func (r *CacheKeyStruct) SessionResultKey(examID, studentID string) string {
	return fmt.Sprintf("session:exam:%s:student:%s:result", examID, studentID)
}

// ExamQuestionsKey returns the key caching the full question set of an exam.
func (r *CacheKeyStruct) ExamQuestionsKey(examID string) string {
	return fmt.Sprintf("exam:%s:questions", examID)
}

var CacheKey = NewCacheKeyStruct()
