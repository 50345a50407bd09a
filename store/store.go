// Package store provides translation store implementations.
package store

import "github.com/ZaguanLabs/dyntrans"

// Store is the interface for the shared translation store.
// This is an alias to the main package interface for convenience.
type Store = dyntrans.Store

// Enumerator is the optional content-discovery capability.
type Enumerator = dyntrans.Enumerator

// Record is an alias to the main package record type.
type Record = dyntrans.TranslationRecord

// Item is an alias to the main package content item type.
type Item = dyntrans.ContentItem

// Discovered is an alias to the main package discovery result type.
type Discovered = dyntrans.DiscoveredContent
