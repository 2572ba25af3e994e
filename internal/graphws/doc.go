// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
//
// The client maintains one connection to the hub's graph stream endpoint
// and absorbs every failure mode at its boundary:
//
//   - Transport failures drive a reconnect state machine with exponential
//     backoff (min(2^n, 30)s, 10-attempt budget, then terminal error).
//   - Protocol failures (malformed JSON, unknown types, payload
//     mismatches) drop the single offending message and nothing else.
//
// Decoded updates flow through a batching queue that flushes on a fixed
// 100ms cadence, so subscribers see a bounded event rate no matter how
// bursty the stream is. Within a batch, enqueue order is preserved;
// across batches, removed/added sequences for one ID are last-write-wins
// by arrival order.
//
// Consumers interact through explicit subscriptions rather than shared
// observable state:
//
//	client, err := graphws.NewClient(scheduler, graphws.Options{
//		BaseURL:   "https://hub.example.com",
//		AuthToken: token,
//	})
//	sub := client.SubscribeUpdates(func(batch graphws.Batch) { ... })
//	client.Connect()
//	defer client.Close()
package graphws
