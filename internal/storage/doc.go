// Package storage persists run results on the local filesystem.
//
// Each run is written as a JSON document named after its run ID under
// <root>/runs. FileStore keeps an in-memory summary cache so listings do
// not re-read every document; the cache is reconciled with the directory
// on each List call so runs saved by another process show up.
package storage
