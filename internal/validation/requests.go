package validation

import (
	"github.com/hyperengineering/orbit/internal/types"
)

const (
	// MaxUserIDLength bounds user identifiers issued by the auth provider.
	MaxUserIDLength = 128
	// MaxQueryLength bounds a single user message.
	MaxQueryLength = 2000
	// MaxEmailLength is the RFC 5321 path limit.
	MaxEmailLength = 254
)

var runTypes = []string{string(types.RunManual), string(types.RunDaily)}

// ValidateUserID checks a user identifier from a body or path.
func ValidateUserID(field, value string) []ValidationError {
	c := &Collector{}
	if err := ValidateRequired(field, value); err != nil {
		c.Add(err)
		return c.Errors()
	}
	c.Add(ValidateMaxLength(field, value, MaxUserIDLength))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateUTF8(field, value))
	return c.Errors()
}

// ValidateRunRequest checks a POST /agent/run body.
func ValidateRunRequest(req types.RunRequest) []ValidationError {
	c := &Collector{}
	for _, e := range ValidateUserID("user_id", req.UserID) {
		c.Add(&e)
	}
	if req.RunType != "" {
		c.Add(ValidateEnum("run_type", string(req.RunType), runTypes))
	}
	if req.UserQuery != "" {
		c.Add(ValidateMaxLength("user_query", req.UserQuery, MaxQueryLength))
		c.Add(ValidateNoNullBytes("user_query", req.UserQuery))
		c.Add(ValidateUTF8("user_query", req.UserQuery))
	}
	return c.Errors()
}

// ValidateCompleteTaskRequest checks a task completion path and body.
func ValidateCompleteTaskRequest(taskID string, req types.CompleteTaskRequest) []ValidationError {
	c := &Collector{}
	c.Add(ValidateULID("task_id", taskID))
	for _, e := range ValidateUserID("user_id", req.UserID) {
		c.Add(&e)
	}
	return c.Errors()
}

// ValidateProfileRequest checks a PUT /profiles body.
func ValidateProfileRequest(req types.ProfileRequest) []ValidationError {
	c := &Collector{}
	if err := ValidateRequired("email", req.Email); err != nil {
		c.Add(err)
		return c.Errors()
	}
	c.Add(ValidateMaxLength("email", req.Email, MaxEmailLength))
	c.Add(ValidateEmail("email", req.Email))
	return c.Errors()
}
