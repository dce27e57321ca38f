package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/indicadores/apiserver/types"
)

// Message attribute keys set on every calculation event.
const (
	AttrEventType     = "event_type"
	AttrCalculationID = "calculation_id"
	AttrIndicatorID   = "indicator_id"
)

// EncodeEvent serializes an event and the routing attributes that accompany it.
func EncodeEvent(event types.CalculationEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	attrs := map[string]string{
		AttrEventType:     string(event.Type),
		AttrCalculationID: strconv.Itoa(event.Calculation.ID),
		AttrIndicatorID:   strconv.Itoa(event.Calculation.IndicatorID),
	}
	return data, attrs, nil
}

// DecodeEvent parses a message body produced by EncodeEvent.
func DecodeEvent(data []byte) (types.CalculationEvent, error) {
	var event types.CalculationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return types.CalculationEvent{}, fmt.Errorf("decode calculation event: %w", err)
	}
	switch event.Type {
	case types.CalculationCreated, types.CalculationUpdated, types.CalculationDeleted:
	default:
		return types.CalculationEvent{}, fmt.Errorf("unknown calculation event type %q", event.Type)
	}
	return event, nil
}
