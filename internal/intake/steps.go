// Package intake implements the multi-step listing wizard: an ordered form
// that collects a new ad's fields and photos across several chat messages
// from the same sender, then persists the whole listing atomically.
//
// This file declares the form itself: the ordered step sequence and the
// per-step validators. Validators are small pure functions over normalized
// input returning the cleaned value or a *ValidationError naming the field
// and the reason, which keeps them unit-testable in isolation.
package intake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// pgIntMax caps numeric answers at the Postgres integer range so a huge price
// or mileage fails validation instead of the insert.
const pgIntMax = 2_147_483_647

// Step keys, used to address drafts and to report which field a commit
// failure belongs to.
const (
	FieldTitle       = "title"
	FieldBrand       = "brand"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldYear        = "year"
	FieldMileage     = "mileage"
	FieldVIN         = "vin"
	FieldPhotos      = "photos"
)

// ValidationError reports a field value that failed a step's validator.
// The wizard recovers from it locally: the session keeps its state and the
// sender is re-prompted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Step is one question of the listing form.
type Step struct {
	// Key identifies the collected field.
	Key string
	// Prompt is the question sent to the sender when the step becomes active.
	// For media steps it is a format string taking the photo cap.
	Prompt string
	// Validate normalizes and checks a text answer. Unused for media steps.
	Validate func(string) (string, error)
	// Media marks the photo-collection step, which accepts repeated
	// attachments instead of a single text answer.
	Media bool
}

// SellSteps is the ordered listing form. The photo step is last; commit fires
// once it completes.
var SellSteps = []Step{
	{Key: FieldTitle, Prompt: "Enter the listing title:", Validate: validateTitle},
	{Key: FieldBrand, Prompt: "Car brand (e.g. Toyota):", Validate: validateBrand},
	{Key: FieldDescription, Prompt: "Describe the car (trim, condition):", Validate: validateDescription},
	{Key: FieldPrice, Prompt: "Asking price:", Validate: validatePrice},
	{Key: FieldYear, Prompt: "Model year:", Validate: validateYear},
	{Key: FieldMileage, Prompt: "Mileage (km):", Validate: validateMileage},
	{Key: FieldVIN, Prompt: "VIN (17 characters):", Validate: validateVIN},
	{Key: FieldPhotos, Prompt: "Attach photos of the car (up to %d, one by one). Write 'done' when finished.", Media: true},
}

// stepIndex returns the position of a field in SellSteps, or -1.
func stepIndex(key string) int {
	for i, s := range SellSteps {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// doneWords are the inputs that finish the photo step.
var doneWords = map[string]struct{}{
	"done":   {},
	"готово": {},
}

func isDoneWord(s string) bool {
	_, ok := doneWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func validateText(field, value string, minLen int) (string, error) {
	cleaned := strings.TrimSpace(value)
	if len([]rune(cleaned)) < minLen {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("must be at least %d characters", minLen)}
	}
	return cleaned, nil
}

func validateTitle(v string) (string, error) { return validateText(FieldTitle, v, 3) }

func validateBrand(v string) (string, error) { return validateText(FieldBrand, v, 2) }

func validateDescription(v string) (string, error) { return validateText(FieldDescription, v, 10) }

func validatePrice(v string) (string, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), " ", ""), 10, 64)
	if err != nil {
		return "", &ValidationError{Field: FieldPrice, Reason: "must be a number"}
	}
	if n <= 0 {
		return "", &ValidationError{Field: FieldPrice, Reason: "must be greater than 0"}
	}
	if n > pgIntMax {
		return "", &ValidationError{Field: FieldPrice, Reason: "is unreasonably large"}
	}
	return strconv.FormatInt(n, 10), nil
}

func validateYear(v string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return "", &ValidationError{Field: FieldYear, Reason: "must be a number"}
	}
	if n < 1950 || n > time.Now().UTC().Year()+1 {
		return "", &ValidationError{Field: FieldYear, Reason: "is out of range"}
	}
	return strconv.Itoa(n), nil
}

func validateMileage(v string) (string, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), " ", ""), 10, 64)
	if err != nil {
		return "", &ValidationError{Field: FieldMileage, Reason: "must be a number"}
	}
	if n < 0 {
		return "", &ValidationError{Field: FieldMileage, Reason: "cannot be negative"}
	}
	if n > pgIntMax {
		return "", &ValidationError{Field: FieldMileage, Reason: "is unreasonably large"}
	}
	return strconv.FormatInt(n, 10), nil
}

func validateVIN(v string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(v))
	if len(cleaned) < 5 || len(cleaned) > 100 {
		return "", &ValidationError{Field: FieldVIN, Reason: "must be 5 to 100 characters"}
	}
	return cleaned, nil
}
