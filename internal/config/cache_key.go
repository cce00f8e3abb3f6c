package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// ExamPayloadKey returns the cache key for a published exam's student payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID int64) string {
	return fmt.Sprintf("exam:%d:payload", examID)
}

// SessionAnswersKey returns the hash key buffering a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionEndingKey returns the guard key that serializes session finalization.
// SETNX on this key decides whether the manual-end or the deadline path wins;
// the loser reads the already-set end time instead of issuing a second end.
func (r *CacheKeyStruct) SessionEndingKey(sessionID string) string {
	return fmt.Sprintf("session:%s:ending", sessionID)
}

var CacheKey = NewCacheKeyStruct()
