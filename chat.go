package main

import (
	"log"
	"sync"
	"time"
)

const (
	chatHistoryLen  = 10
	chatFlushEvery  = 5 * time.Second
	chatFlushBatch  = 50
	chatQueueLength = 1024
)

// ChatSink receives chat lines from the rink
type ChatSink interface {
	Append(e ChatEntry)
}

// ChatLog persists chat lines with batched background writes
type ChatLog struct {
	db      *DB
	entries chan ChatEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewChatLog creates and starts the chat background writer
func NewChatLog(db *DB) *ChatLog {
	l := &ChatLog{
		db:      db,
		entries: make(chan ChatEntry, chatQueueLength),
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Append enqueues a line for async persistence (non-blocking)
func (l *ChatLog) Append(e ChatEntry) {
	select {
	case <-l.stop:
		return
	default:
	}
	select {
	case l.entries <- e:
	default:
		// Channel full, drop rather than block the rink
	}
}

// Recent returns the latest persisted lines, oldest first.
// Lines still queued are not included.
func (l *ChatLog) Recent() []ChatEntry {
	if l.db == nil {
		return nil
	}
	entries, err := l.db.RecentChat(chatHistoryLen)
	if err != nil {
		log.Printf("chat: recent error: %v", err)
		return nil
	}
	return entries
}

// Stop flushes pending lines and shuts down the writer
func (l *ChatLog) Stop() {
	l.once.Do(func() { close(l.stop) })
	l.wg.Wait()
}

// writer is the background goroutine that batches and writes lines to DB
func (l *ChatLog) writer() {
	defer l.wg.Done()

	batch := make([]ChatEntry, 0, 64)
	ticker := time.NewTicker(chatFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case e := <-l.entries:
			batch = append(batch, e)
			if len(batch) >= chatFlushBatch {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-l.stop:
			// Drain what is already queued
		drain:
			for {
				select {
				case e := <-l.entries:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			l.flush(batch)
			return
		}
	}
}

func (l *ChatLog) flush(batch []ChatEntry) {
	if l.db == nil || len(batch) == 0 {
		return
	}
	if err := l.db.InsertChatBatch(batch); err != nil {
		log.Printf("chat: insert batch error: %v", err)
	}
}
