package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"foxfamily/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateNickname checks a member nickname against length limits.
// Uniqueness inside a family is checked separately at join/rename time.
func ValidateNickname(nick string) error {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return ValidationError{Field: "nickname", Message: "nickname is required"}
	}
	if len([]rune(nick)) > models.MaxNicknameLen {
		return ValidationError{Field: "nickname", Message: fmt.Sprintf("nickname must be at most %d characters", models.MaxNicknameLen)}
	}
	return nil
}

// ValidateFamilyName checks a family display name.
func ValidateFamilyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "family name is required"}
	}
	if len([]rune(name)) > models.MaxFamilyNameLen {
		return ValidationError{Field: "name", Message: fmt.Sprintf("family name must be at most %d characters", models.MaxFamilyNameLen)}
	}
	return nil
}

// ValidateDescription checks a task description.
func ValidateDescription(desc string) error {
	desc = strings.TrimSpace(desc)
	if len([]rune(desc)) < models.MinDescriptionLen {
		return ValidationError{Field: "description", Message: "description is required"}
	}
	if len([]rune(desc)) > models.MaxDescriptionLen {
		return ValidationError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", models.MaxDescriptionLen)}
	}
	return nil
}

// ParsePercent parses a progress value and checks the 0-100 range.
func ParsePercent(input string) (int, error) {
	pct, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, ValidationError{Field: "progress", Message: "progress must be a whole number"}
	}
	if pct < 0 || pct > 100 {
		return 0, ValidationError{Field: "progress", Message: "progress must be between 0 and 100"}
	}
	return pct, nil
}

// SplitItems parses a newline-separated shopping list into trimmed,
// non-empty item labels. A trailing quantity in parentheses is split off,
// e.g. "milk (2)" becomes label "milk" with quantity "2".
func SplitItems(input string) []models.ChecklistItem {
	var items []models.ChecklistItem
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		item := models.ChecklistItem{Label: line}
		if open := strings.LastIndex(line, "("); open > 0 && strings.HasSuffix(line, ")") {
			item.Label = strings.TrimSpace(line[:open])
			item.Quantity = strings.TrimSpace(line[open+1 : len(line)-1])
		}
		items = append(items, item)
	}
	return items
}
