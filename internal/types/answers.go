package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CustomizedAnswer is the candidate's choice for one customized question.
type CustomizedAnswer struct {
	Question       string `json:"question" validate:"required"`
	BasedOn        string `json:"basedOn"`
	SelectedAnswer string `json:"selectedAnswer" validate:"required"`
}

// BehavioralAnswer is one timed behavioral response. ResponseTime is in seconds.
type BehavioralAnswer struct {
	Question     string  `json:"question" validate:"required"`
	Answer       string  `json:"answer" validate:"required"`
	ResponseTime float64 `json:"responseTime" validate:"gte=0"`
}

// CustomizedAnswers is the body of a customized-answer submission.
type CustomizedAnswers []CustomizedAnswer

// BehavioralAnswers is the body of a behavioral-answer submission.
type BehavioralAnswers []BehavioralAnswer

// Validate validates every answer.
func (a CustomizedAnswers) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("at least one answer is required")
	}
	for i := range a {
		if err := validate.Struct(a[i]); err != nil {
			return fmt.Errorf("answer %d: %w", i, err)
		}
	}
	return nil
}

// Validate validates every answer.
func (a BehavioralAnswers) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("at least one answer is required")
	}
	for i := range a {
		if err := validate.Struct(a[i]); err != nil {
			return fmt.Errorf("answer %d: %w", i, err)
		}
	}
	return nil
}

// AverageResponseTime returns the mean response time, or 0 for no answers.
func (a BehavioralAnswers) AverageResponseTime() float64 {
	if len(a) == 0 {
		return 0
	}
	var total float64
	for _, ans := range a {
		total += ans.ResponseTime
	}
	return total / float64(len(a))
}

// DecodeCustomizedAnswers parses and validates a raw submission body.
func DecodeCustomizedAnswers(body []byte) (CustomizedAnswers, error) {
	var answers CustomizedAnswers
	if err := json.Unmarshal(body, &answers); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if err := answers.Validate(); err != nil {
		return nil, err
	}
	return answers, nil
}

// DecodeBehavioralAnswers parses and validates a raw submission body.
func DecodeBehavioralAnswers(body []byte) (BehavioralAnswers, error) {
	var answers BehavioralAnswers
	if err := json.Unmarshal(body, &answers); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if err := answers.Validate(); err != nil {
		return nil, err
	}
	return answers, nil
}
