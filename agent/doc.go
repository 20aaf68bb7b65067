// Package agent implements the leader/worker orchestration on top of
// the protocol fabric.
//
// # Overview
//
// A Leader turns a free-text request into a user profile, decomposes
// it into per-category tasks, dispatches them to category workers and
// fans their replies back in under a deadline. Each Worker is an
// independent goroutine polling its own mailbox with a bounded
// timeout, so it needs no wake signal and stops cooperatively between
// polls. Completion calls on both sides go through the shared Runtime,
// which guards them with the rate limiter, circuit breaker and retry
// handler; an open circuit or exhausted retries yields a neutral
// fallback instead of failing the pipeline.
package agent
