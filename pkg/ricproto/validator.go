// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricproto

import (
	"encoding/json"
	"fmt"
)

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyUnknownProtocol AnomalyType = iota
	AnomalyUnknownRESTType
	AnomalyMissingRESTType
	AnomalyUnnumberedResponse
	AnomalyInvalidJSON
	AnomalyShortFileBlock
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyUnknownProtocol:
		return "UNKNOWN_PROTOCOL"
	case AnomalyUnknownRESTType:
		return "UNKNOWN_REST_TYPE"
	case AnomalyMissingRESTType:
		return "MISSING_REST_TYPE"
	case AnomalyUnnumberedResponse:
		return "UNNUMBERED_RESPONSE"
	case AnomalyInvalidJSON:
		return "INVALID_JSON"
	case AnomalyShortFileBlock:
		return "SHORT_FILE_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMsg checks a decoded message for anomalies.
// Returns a slice of validation errors (empty if the message is valid)
func ValidateMsg(m *DecodedMsg) []ValidationError {
	errors := []ValidationError{}

	switch m.Protocol {
	case ProtocolROSSerial, ProtocolM1SC:
	case ProtocolRICREST:
		errors = append(errors, validateRICREST(m)...)
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownProtocol,
			Message: fmt.Sprintf("Unknown protocol %d", m.Protocol),
			Details: map[string]interface{}{"protocol": uint8(m.Protocol)},
		})
	}

	if m.Direction == DirResponse && !m.Numbered() {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnnumberedResponse,
			Message: "Response without message number",
		})
	}

	return errors
}

func validateRICREST(m *DecodedMsg) []ValidationError {
	if !m.HasRESTType {
		return []ValidationError{{
			Type:    AnomalyMissingRESTType,
			Message: "RICREST message without element code",
		}}
	}

	errors := []ValidationError{}
	switch m.RESTType {
	case RESTURL, RESTBody, RESTCmdFrame:
	case RESTJSON:
		errors = append(errors, validateJSONText(m)...)
	case RESTFileBlock:
		if len(m.Payload) < fileBlockOffsetLen {
			errors = append(errors, ValidationError{
				Type:    AnomalyShortFileBlock,
				Message: fmt.Sprintf("File block payload too short (%d bytes)", len(m.Payload)),
				Details: map[string]interface{}{"length": len(m.Payload), "minimum": fileBlockOffsetLen},
			})
		}
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownRESTType,
			Message: fmt.Sprintf("Unknown RICREST element code %d", m.RESTType),
			Details: map[string]interface{}{"elem": uint8(m.RESTType)},
		})
	}

	// Replies to URL commands come back as URL elements carrying JSON
	if m.RESTType == RESTURL && m.Direction == DirResponse {
		errors = append(errors, validateJSONText(m)...)
	}

	return errors
}

func validateJSONText(m *DecodedMsg) []ValidationError {
	if json.Valid([]byte(m.Text())) {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidJSON,
		Message: "Text payload is not valid JSON",
		Details: map[string]interface{}{"text": m.Text()},
	}}
}
