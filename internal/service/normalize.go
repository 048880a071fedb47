package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
)

// Action identifies which provider call a response belongs to
type Action int

const (
	ActionStatus Action = iota
	ActionStart
	ActionHalt
)

func (a Action) String() string {
	switch a {
	case ActionStatus:
		return "status"
	case ActionStart:
		return "start"
	case ActionHalt:
		return "halt"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// instanceDocument is the subset of GET /instances/{id} the gateway reads.
// Instance stays raw so an explicit null can be told apart from a missing key.
type instanceDocument struct {
	Instance json.RawMessage `json:"instance"`
}

type instanceFields struct {
	PowerStatus string `json:"power_status"`
}

// Normalize maps a provider reply onto the gateway envelope. Unexpected
// status codes come back as *provider.ProviderError holding the raw body so
// the caller can pass them through verbatim.
func Normalize(action Action, code int, body []byte) (models.Envelope, error) {
	switch action {
	case ActionStatus:
		if code != http.StatusOK {
			return models.Envelope{}, &provider.ProviderError{Code: code, Message: string(body)}
		}
		powerStatus, err := decodePowerStatus(body)
		if err != nil {
			return models.Envelope{}, err
		}
		if powerStatus == models.PowerStatusRunning {
			return models.Envelope{Status: models.StatusOnline}, nil
		}
		return models.Envelope{Status: models.StatusOffline}, nil

	case ActionStart:
		if code != http.StatusNoContent {
			return models.Envelope{}, &provider.ProviderError{Code: code, Message: string(body)}
		}
		return models.Envelope{Status: models.StatusStarted}, nil

	case ActionHalt:
		if code != http.StatusNoContent {
			return models.Envelope{}, &provider.ProviderError{Code: code, Message: string(body)}
		}
		return models.Envelope{Status: models.StatusShutdownInitiated}, nil

	default:
		return models.Envelope{}, fmt.Errorf("unknown action %s", action)
	}
}

// decodePowerStatus reads instance.power_status. A missing instance key
// reads as no status; a null document or null instance is malformed.
func decodePowerStatus(body []byte) (string, error) {
	var doc *instanceDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: %w", provider.ErrMalformedResponse, err)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: null document", provider.ErrMalformedResponse)
	}
	if doc.Instance == nil {
		return "", nil
	}
	if string(doc.Instance) == "null" {
		return "", fmt.Errorf("%w: null instance", provider.ErrMalformedResponse)
	}

	var fields instanceFields
	if err := json.Unmarshal(doc.Instance, &fields); err != nil {
		return "", fmt.Errorf("%w: instance: %w", provider.ErrMalformedResponse, err)
	}
	return fields.PowerStatus, nil
}
