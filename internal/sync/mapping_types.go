package sync

import "time"

// MappingRow links a remote asset to its last-known local sync state.
// Keyed by ForgeName, which is unique within the library.
type MappingRow struct {
	ForgeName     string    `json:"forgeName"`
	ForgeHash     string    `json:"forgeHash"`
	LocalEtag     string    `json:"localEtag"`
	LocalHash     string    `json:"localHash"`
	FirstSyncDate time.Time `json:"firstSyncDate"`
	LastSyncDate  time.Time `json:"lastSyncDate"`
}

// EtagSet records every local etag that has been observed for one
// content hash.
type EtagSet struct {
	Hash  string   `json:"hash"`
	Etags []string `json:"etags"`
}

// MappingDocument is the persisted shape of the mapping file.
type MappingDocument struct {
	Assets []*MappingRow `json:"assets"`
	Etags  []*EtagSet    `json:"etags"`
}
