// Package vfs provides the platform-independent file-watching API
// internal/devwatch uses to notice dropped device descriptors: an Event/
// WatchOp vocabulary and a Watcher interface, backed by
// github.com/fsnotify/fsnotify in watch_fsnotify.go.
package vfs

import "time"

// WatchOp indicates a change operation in the filesystem.
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event describes a filesystem change event.
type Event struct {
	Path string
	Op   WatchOp
	Time time.Time
}

// Watcher provides a platform-independent file watching API.
type Watcher interface {
	Events() <-chan Event
	Errors() <-chan error
	Add(name string) error
	Remove(name string) error
	Close() error
}
