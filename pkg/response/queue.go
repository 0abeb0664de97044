// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import "context"

// DefaultQueueSize is the chunk capacity used by the monitor
const DefaultQueueSize = 256

// TextQueue carries raw text chunks from transport goroutines to the single
// goroutine that runs the pipeline. Any number of producers may push.
type TextQueue struct {
	ch chan string
}

// NewTextQueue creates a queue holding up to size chunks
func NewTextQueue(size int) *TextQueue {
	if size < 1 {
		size = 1
	}
	return &TextQueue{ch: make(chan string, size)}
}

// Push enqueues a chunk, blocking while the queue is full until ctx is done
func (q *TextQueue) Push(ctx context.Context, text string) error {
	select {
	case q.ch <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues a chunk without blocking and reports whether it fit
func (q *TextQueue) TryPush(text string) bool {
	select {
	case q.ch <- text:
		return true
	default:
		return false
	}
}

// Drain removes every chunk currently queued without blocking
func (q *TextQueue) Drain() []string {
	var out []string
	for {
		select {
		case text := <-q.ch:
			out = append(out, text)
		default:
			return out
		}
	}
}

// Len returns the number of queued chunks
func (q *TextQueue) Len() int { return len(q.ch) }
