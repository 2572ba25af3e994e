// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
package graphws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// =============================================================================
// WIRE PROTOCOL
// =============================================================================

// Inbound message types.
const (
	msgConnectionEstablished = "connection_established"
	msgPong                  = "pong"
	msgNodeAdded             = "node_added"
	msgNodeUpdated           = "node_updated"
	msgNodeRemoved           = "node_removed"
	msgEdgeAdded             = "edge_added"
	msgEdgeUpdated           = "edge_updated"
	msgEdgeRemoved           = "edge_removed"
	msgClusterUpdated        = "cluster_updated"
	msgQueryResult           = "query_result"
	msgLayoutUpdate          = "layout_update"
	msgBulkUpdate            = "bulk_update"
	msgError                 = "error"
)

// Outbound message types.
const (
	msgGraphQuery     = "graph_query"
	msgSubscribeNodes = "subscribe_nodes"
	msgLayoutRequest  = "layout_request"
	msgPing           = "ping"
)

// Envelope is the outer wire structure wrapping every message.
// Timestamp is seconds since the Unix epoch.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// outboundEnvelope mirrors Envelope with an encodable payload.
type outboundEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp float64     `json:"timestamp"`
}

// Codec errors. Both are per-message conditions: the offending frame is
// dropped and the connection is left alone.
var (
	ErrMalformedEnvelope  = errors.New("malformed message envelope")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// =============================================================================
// INBOUND DECODING
// =============================================================================

// Frame is one decoded inbound message.
type Frame struct {
	// Type is the envelope type string
	Type string

	// Timestamp is the envelope timestamp
	Timestamp time.Time

	// Updates holds the decoded graph updates for update-bearing frames.
	// A bulk_update frame yields all of its decodable sub-payloads here.
	Updates []Update

	// Skipped counts bulk sub-payloads dropped for unknown type or
	// decode failure
	Skipped int

	// ErrorMessage is set for server "error" frames
	ErrorMessage string

	// RTT-relevant control frames (connection_established, pong) carry
	// no payload beyond the type itself
}

// IsControl reports whether the frame is a protocol control message rather
// than a graph update.
func (f *Frame) IsControl() bool {
	switch f.Type {
	case msgConnectionEstablished, msgPong, msgError:
		return true
	}
	return false
}

// DecodeFrame parses one raw text frame into a Frame.
//
// Malformed JSON returns ErrMalformedEnvelope; an unrecognized top-level
// type returns ErrUnknownMessageType; a recognized type whose payload does
// not decode returns a wrapped error. All of these are drop-the-message
// conditions for the caller, never connection failures.
func DecodeFrame(raw []byte) (*Frame, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	ts := timeFromEpochSeconds(env.Timestamp)
	frame := &Frame{Type: env.Type, Timestamp: ts}

	switch env.Type {
	case msgConnectionEstablished, msgPong:
		return frame, nil

	case msgError:
		var payload struct {
			Message string `json:"message"`
		}
		if len(env.Data) > 0 {
			if err := sonic.Unmarshal(env.Data, &payload); err != nil {
				return nil, fmt.Errorf("error payload: %w", err)
			}
		}
		frame.ErrorMessage = payload.Message
		return frame, nil

	case msgBulkUpdate:
		updates, skipped, err := decodeBulk(env.Data, ts)
		if err != nil {
			return nil, err
		}
		frame.Updates = updates
		frame.Skipped = skipped
		return frame, nil

	default:
		update, err := decodeUpdate(env.Type, env.Data, ts)
		if err != nil {
			return nil, err
		}
		frame.Updates = []Update{update}
		return frame, nil
	}
}

// decodeUpdate decodes one typed update payload.
func decodeUpdate(msgType string, data json.RawMessage, ts time.Time) (Update, error) {
	update := Update{Timestamp: ts}

	switch msgType {
	case msgNodeAdded, msgNodeUpdated:
		var node GraphNode
		if err := sonic.Unmarshal(data, &node); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateNodeAdded
		if msgType == msgNodeUpdated {
			update.Kind = UpdateNodeUpdated
		}
		update.Node = &node

	case msgNodeRemoved:
		var payload struct {
			NodeID string `json:"nodeId"`
		}
		if err := sonic.Unmarshal(data, &payload); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateNodeRemoved
		update.NodeID = payload.NodeID

	case msgEdgeAdded, msgEdgeUpdated:
		var edge GraphEdge
		if err := sonic.Unmarshal(data, &edge); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateEdgeAdded
		if msgType == msgEdgeUpdated {
			update.Kind = UpdateEdgeUpdated
		}
		update.Edge = &edge

	case msgEdgeRemoved:
		var payload struct {
			EdgeID string `json:"edgeId"`
		}
		if err := sonic.Unmarshal(data, &payload); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateEdgeRemoved
		update.EdgeID = payload.EdgeID

	case msgClusterUpdated:
		var cluster GraphCluster
		if err := sonic.Unmarshal(data, &cluster); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateClusterUpdated
		update.Cluster = &cluster

	case msgQueryResult:
		var result QueryResult
		if err := sonic.Unmarshal(data, &result); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateQueryResult
		update.Result = &result

	case msgLayoutUpdate:
		var payload struct {
			Positions map[string]Position `json:"positions"`
		}
		if err := sonic.Unmarshal(data, &payload); err != nil {
			return update, fmt.Errorf("%s payload: %w", msgType, err)
		}
		update.Kind = UpdateLayout
		update.Positions = payload.Positions

	default:
		return update, fmt.Errorf("%w: %q", ErrUnknownMessageType, msgType)
	}

	return update, nil
}

// decodeBulk decodes a bulk_update payload. Sub-payloads that fail to
// decode (unknown type or bad data) are skipped individually so a single
// bad entry cannot poison the batch.
func decodeBulk(data json.RawMessage, ts time.Time) ([]Update, int, error) {
	var payload struct {
		Updates []struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"updates"`
	}
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return nil, 0, fmt.Errorf("bulk_update payload: %w", err)
	}

	updates := make([]Update, 0, len(payload.Updates))
	skipped := 0
	for _, entry := range payload.Updates {
		update, err := decodeUpdate(entry.Type, entry.Data, ts)
		if err != nil {
			skipped++
			continue
		}
		updates = append(updates, update)
	}
	return updates, skipped, nil
}

// =============================================================================
// OUTBOUND ENCODING
// =============================================================================

// EncodeGraphQuery builds a graph_query command frame.
func EncodeGraphQuery(query string, parameters map[string]interface{}) ([]byte, error) {
	now := epochSeconds(time.Now())
	return encodeEnvelope(msgGraphQuery, map[string]interface{}{
		"query":      query,
		"parameters": parameters,
		"timestamp":  now,
	})
}

// EncodeSubscribeNodes builds a subscribe_nodes command frame.
func EncodeSubscribeNodes(nodeIDs []string) ([]byte, error) {
	return encodeEnvelope(msgSubscribeNodes, map[string]interface{}{
		"nodeIds": nodeIDs,
	})
}

// EncodeLayoutRequest builds a layout_request command frame.
func EncodeLayoutRequest(algorithm string, parameters map[string]interface{}) ([]byte, error) {
	return encodeEnvelope(msgLayoutRequest, map[string]interface{}{
		"algorithm":  algorithm,
		"parameters": parameters,
	})
}

// EncodePing builds a keep-alive ping frame.
func EncodePing() ([]byte, error) {
	return encodeEnvelope(msgPing, map[string]interface{}{})
}

// encodeEnvelope wraps a payload in the outer wire envelope.
func encodeEnvelope(msgType string, data interface{}) ([]byte, error) {
	env := outboundEnvelope{
		Type:      msgType,
		Data:      data,
		Timestamp: epochSeconds(time.Now()),
	}
	raw, err := sonic.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return raw, nil
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// epochSeconds converts a time to fractional seconds since the Unix epoch.
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// timeFromEpochSeconds converts fractional epoch seconds to a time.
// A zero timestamp yields the zero time, not 1970.
func timeFromEpochSeconds(secs float64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(secs*float64(time.Second)))
}
