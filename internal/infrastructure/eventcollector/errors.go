package eventcollector

import (
	"encoding/json"
	"fmt"

	"ecselfservice/internal/domain"
)

const SchemaEvolutionErrorType = "https://eventcollector.we.co/v1/errors#schema-evolution-error"

const rawContextLimit = 512

type fieldError struct {
	Title     string `json:"title"`
	FieldName string `json:"fieldName"`
	Detail    string `json:"detail"`
}

type errorEnvelope struct {
	Type   *string      `json:"type"`
	Detail *string      `json:"detail"`
	Errors []fieldError `json:"errors"`
}

// errorHandlers maps backend problem types to domain errors. A handler
// returns nil when the body lacks what it needs.
var errorHandlers = map[string]func(errorEnvelope) error{
	SchemaEvolutionErrorType: schemaEvolution,
}

func schemaEvolution(env errorEnvelope) error {
	if env.Detail == nil {
		return nil
	}
	fields := make([]string, 0, len(env.Errors))
	for _, fe := range env.Errors {
		fields = append(fields, fmt.Sprintf("title=[%s] field=[%s] detail=[%s]", fe.Title, fe.FieldName, fe.Detail))
	}
	return &domain.SchemaEvolutionError{Detail: *env.Detail, FieldErrors: fields}
}

func defaultHandler(env errorEnvelope) error {
	if env.Detail == nil {
		return nil
	}
	return &domain.APIError{Detail: *env.Detail}
}

// mapError never fails itself: anything it cannot make sense of becomes an
// unknown API response error carrying the raw context.
func mapError(status int, raw []byte, readErr error) error {
	if readErr == nil {
		var env errorEnvelope
		if err := json.Unmarshal(raw, &env); err == nil {
			handler := defaultHandler
			if env.Type != nil {
				if h, ok := errorHandlers[*env.Type]; ok {
					handler = h
				}
			}
			if err := handler(env); err != nil {
				return err
			}
		}
	}
	return &domain.APIError{Detail: fmt.Sprintf("unknown API response: status=[%d] body=[%s]", status, truncate(raw))}
}

func truncate(raw []byte) string {
	if len(raw) > rawContextLimit {
		return string(raw[:rawContextLimit]) + "..."
	}
	return string(raw)
}
