package settings

import (
	"encoding/json"

	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/validation"
)

type putRequest struct {
	Value       json.RawMessage `json:"value"`
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
}

type valueBody struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type removedBody struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

type countBody struct {
	Count int `json:"count"`
}

type errorBody struct {
	Error string `json:"error"`
}

type batchErrorBody struct {
	Error    string              `json:"error"`
	Failures map[string][]string `json:"failures"`
}

// aggregateBody renders a batch validation failure with every offending
// entry and its rule messages.
func aggregateBody(agg *validation.Aggregate) batchErrorBody {
	failures := make(map[string][]string, len(agg.Failures))

	for key, errs := range agg.Failures {
		messages := make([]string, 0, len(errs))
		for _, err := range errs {
			messages = append(messages, err.Error())
		}

		failures[key] = messages
	}

	return batchErrorBody{Error: agg.Error(), Failures: failures}
}

// entry is the list representation of one stored setting row.
type entry struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	OwnerType   string          `json:"owner_type,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
}

func toEntries(settings []models.Setting) []entry {
	entries := make([]entry, 0, len(settings))

	for _, s := range settings {
		entries = append(entries, entry{
			Key:         s.Key,
			Value:       json.RawMessage(s.Value),
			OwnerType:   s.OwnerType,
			OwnerID:     s.OwnerID,
			Name:        s.Name,
			Description: s.Description,
		})
	}

	return entries
}
