package model

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FieldError is a single failed write-time validation rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries one FieldError per invalid field of a document.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// ValidateUser checks a user document before it is written. The password rule
// applies to the plaintext, so it must run before hashing; checkPassword is
// false on updates that keep the stored hash.
func ValidateUser(u *User, plaintext string, checkPassword bool) error {
	ve := &ValidationError{}
	if u.Email == "" {
		ve.add("email", "Email is required")
	} else if !emailPattern.MatchString(u.Email) {
		ve.add("email", "Invalid user email")
	}
	// Limits count characters, not bytes.
	if u.Name == "" {
		ve.add("name", "User name is required")
	} else if utf8.RuneCountInString(u.Name) < 3 {
		ve.add("name", "Name is too small, it's length must be between 3 and 30 characters")
	} else if utf8.RuneCountInString(u.Name) > 30 {
		ve.add("name", "Name is too long, it's length must be between 3 and 30 characters")
	}
	if checkPassword {
		if plaintext == "" {
			ve.add("password", "User password is required")
		} else if utf8.RuneCountInString(plaintext) < 8 {
			ve.add("password", "Password is too small, it's length must be greater than 8 characters")
		}
	}
	return ve.orNil()
}

// ValidatePoll checks a poll document before it is written.
func ValidatePoll(p *Poll) error {
	ve := &ValidationError{}
	if p.Title == "" {
		ve.add("title", "Title is required")
	} else if utf8.RuneCountInString(p.Title) > 100 {
		ve.add("title", "Title is too long, it's length must be under 100 characters")
	}
	for _, c := range p.Choices {
		if c.Label == "" {
			ve.add("choices", "Choice label is required")
			break
		}
		if utf8.RuneCountInString(c.Label) > 50 {
			ve.add("choices", "Choice label is too long, it's length must be under 50 characters")
			break
		}
	}
	return ve.orNil()
}

// ValidateComment checks a comment before it is appended to a poll.
func ValidateComment(c *Comment) error {
	ve := &ValidationError{}
	if c.Content == "" {
		ve.add("content", "Content is required")
	} else if utf8.RuneCountInString(c.Content) > 300 {
		ve.add("content", "Content is too long, it's length must be under 300 characters")
	}
	return ve.orNil()
}
