package migrate

import (
	"context"
)

// EntityType tags the shape of a world document.
type EntityType string

const (
	TypeActor          EntityType = "Actor"
	TypeActiveEffect   EntityType = "ActiveEffect"
	TypeAdventure      EntityType = "Adventure"
	TypeAmbientSound   EntityType = "AmbientSound"
	TypeCard           EntityType = "Card"
	TypeCards          EntityType = "Cards"
	TypeChatMessage    EntityType = "ChatMessage"
	TypeCombatant      EntityType = "Combatant"
	TypeDrawing        EntityType = "Drawing"
	TypeItem           EntityType = "Item"
	TypeJournalEntry   EntityType = "JournalEntry"
	TypeJournalPage    EntityType = "JournalEntryPage"
	TypeMacro          EntityType = "Macro"
	TypeNote           EntityType = "Note"
	TypePlaylist       EntityType = "Playlist"
	TypePlaylistSound  EntityType = "PlaylistSound"
	TypeRollTable      EntityType = "RollTable"
	TypeScene          EntityType = "Scene"
	TypeTableResult    EntityType = "TableResult"
	TypeTile           EntityType = "Tile"
	TypeToken          EntityType = "Token"
	TypeUser           EntityType = "User"
)

// Entity is the normalized record shape of a world document: a plain
// nested map as decoded from JSON.
type Entity map[string]any

// ID returns the document id, or "".
func (e Entity) ID() string {
	id, _ := e["_id"].(string)
	return id
}

// Diff is a sparse update for one entity: changed fields keyed by
// dot-separated path.
type Diff struct {
	ID      string
	Changes map[string]any
}

// WorldMetadata is the world-level record migrated separately from the
// entity collections.
type WorldMetadata struct {
	Background  string
	Description string
}

// DocumentStore is the host's object-document system: typed entity
// collections plus the world metadata record.
type DocumentStore interface {
	// Collections returns the entity types present in the world.
	Collections(ctx context.Context) ([]EntityType, error)

	// List returns every entity of one type.
	List(ctx context.Context, t EntityType) ([]Entity, error)

	// UpdateBatch applies a set of sparse diffs to one collection
	// atomically. Implementations reject the whole batch on failure.
	UpdateBatch(ctx context.Context, t EntityType, diffs []Diff) error

	// Update applies a single sparse diff.
	Update(ctx context.Context, t EntityType, diff Diff) error

	// World returns the world metadata record.
	World(ctx context.Context) (*WorldMetadata, error)

	// UpdateWorld replaces the world metadata record.
	UpdateWorld(ctx context.Context, meta *WorldMetadata) error
}
