package storage

// Package storage provides the persistent key/value layer backing the
// notification log and user settings.
//
// Values are opaque JSON documents owned by the caller. Every mutation
// publishes a change event on the shared bus so in-process observers (the
// settings watcher) react without polling; the file driver additionally
// watches the backing directory so changes made by other processes are
// observed too.
