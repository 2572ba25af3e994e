// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
package graphws

import (
	"fmt"
	"time"
)

// =============================================================================
// GRAPH ENTITIES
// =============================================================================

// GraphNode is one node of the live agent graph.
type GraphNode struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`

	// Activation is the current attention weight of the node (0..1),
	// present on nodes emitted by the attention subsystem.
	Activation float64 `json:"activation,omitempty"`
}

// GraphEdge is a directed relationship between two nodes.
type GraphEdge struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Weight     float64                `json:"weight,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// GraphCluster groups related nodes for coarse visualization.
type GraphCluster struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	NodeIDs  []string `json:"node_ids"`
	Cohesion float64  `json:"cohesion,omitempty"`
}

// QueryResult is the response to a graph_query command.
type QueryResult struct {
	QueryID   string      `json:"query_id,omitempty"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	ElapsedMs float64     `json:"elapsed_ms,omitempty"`
}

// Position is a 3D layout coordinate ([x, y, z] on the wire).
type Position [3]float64

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind discriminates the variants of Update.
type UpdateKind int

const (
	UpdateNodeAdded UpdateKind = iota
	UpdateNodeUpdated
	UpdateNodeRemoved
	UpdateEdgeAdded
	UpdateEdgeUpdated
	UpdateEdgeRemoved
	UpdateClusterUpdated
	UpdateQueryResult
	UpdateLayout
)

// String returns the wire name of the update kind.
func (k UpdateKind) String() string {
	switch k {
	case UpdateNodeAdded:
		return "node_added"
	case UpdateNodeUpdated:
		return "node_updated"
	case UpdateNodeRemoved:
		return "node_removed"
	case UpdateEdgeAdded:
		return "edge_added"
	case UpdateEdgeUpdated:
		return "edge_updated"
	case UpdateEdgeRemoved:
		return "edge_removed"
	case UpdateClusterUpdated:
		return "cluster_updated"
	case UpdateQueryResult:
		return "query_result"
	case UpdateLayout:
		return "layout_update"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Update is a single decoded graph update. Exactly the fields implied by
// Kind are populated; the rest are zero.
//
// Ordering note: within one flushed batch, updates preserve enqueue order.
// Across batches, removed/added sequences for the same ID carry no ordering
// guarantee beyond arrival order; consumers must treat the stream as
// last-write-wins.
type Update struct {
	Kind UpdateKind

	Node      *GraphNode
	NodeID    string
	Edge      *GraphEdge
	EdgeID    string
	Cluster   *GraphCluster
	Result    *QueryResult
	Positions map[string]Position

	// Timestamp is the server-side envelope timestamp.
	Timestamp time.Time
}

// TargetID returns the graph entity ID this update concerns, if any.
func (u Update) TargetID() string {
	switch u.Kind {
	case UpdateNodeAdded, UpdateNodeUpdated:
		if u.Node != nil {
			return u.Node.ID
		}
	case UpdateNodeRemoved:
		return u.NodeID
	case UpdateEdgeAdded, UpdateEdgeUpdated:
		if u.Edge != nil {
			return u.Edge.ID
		}
	case UpdateEdgeRemoved:
		return u.EdgeID
	case UpdateClusterUpdated:
		if u.Cluster != nil {
			return u.Cluster.ID
		}
	}
	return ""
}

// Batch is the ordered set of updates accumulated between two flush ticks.
type Batch []Update

// MeanActivation averages the attention weight over every node carried
// by the batch (node_added/node_updated payloads and query_result node
// sets). Nodes with a zero Activation are skipped: the field is omitted
// from the wire for nodes outside the attention subsystem. The bool is
// false when the batch carried no activation samples.
func (b Batch) MeanActivation() (float64, bool) {
	var sum float64
	var n int
	add := func(node GraphNode) {
		if node.Activation > 0 {
			sum += node.Activation
			n++
		}
	}

	for _, u := range b {
		switch u.Kind {
		case UpdateNodeAdded, UpdateNodeUpdated:
			if u.Node != nil {
				add(*u.Node)
			}
		case UpdateQueryResult:
			if u.Result != nil {
				for _, node := range u.Result.Nodes {
					add(node)
				}
			}
		}
	}

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnectionState is the lifecycle state of the client connection.
type ConnectionState int

const (
	// StateDisconnected is the initial state and the result of Disconnect()
	StateDisconnected ConnectionState = iota

	// StateConnecting means a transport dial is in flight
	StateConnecting

	// StateConnected means the transport is open and frames are flowing
	StateConnected

	// StateReconnecting means a backoff delay is running before a retry
	StateReconnecting

	// StateError means the last attempt failed; terminal once the retry
	// budget is exhausted
	StateError
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StateEvent describes one connection state transition.
type StateEvent struct {
	// Previous and Current are the states on either side of the transition
	Previous ConnectionState
	Current  ConnectionState

	// Err is the failure that drove the transition, if any
	Err error

	// Attempt is the reconnect attempt counter at the time of the event
	Attempt int

	// Terminal is true once the retry budget is exhausted; only an
	// explicit Connect() leaves this condition
	Terminal bool
}
