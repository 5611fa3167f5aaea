package migrate

// fieldKind says how a field's value embeds asset references.
type fieldKind int

const (
	// fieldPath holds a bare asset path
	fieldPath fieldKind = iota
	// fieldHTML holds markup with src="..." / href="..." attributes
	fieldHTML
	// fieldMarkdown holds markdown with [text](path) links
	fieldMarkdown
)

// fieldSpec names one field of an entity shape that can hold asset
// references. Path segments of "*" iterate array elements.
type fieldSpec struct {
	path     []string
	kind     fieldKind
	wildcard bool // the host accepts wildcard patterns in this field
	decor    bool // reference is decorative (a link), not a real asset
}

// childSpec names an embedded collection of a different entity shape.
type childSpec struct {
	key string
	typ EntityType
}

// typeSpec is the declarative field list of one entity shape.
type typeSpec struct {
	fields   []fieldSpec
	children []childSpec
}

// entitySpecs is the per-type dispatch table of the walker. Each entry
// lists every known asset-bearing field of that shape plus its embedded
// collections, so traversal never needs reflection or type switches on
// concrete document structs.
var entitySpecs = map[EntityType]typeSpec{
	TypeActor: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
			{path: []string{"prototypeToken", "texture", "src"}, kind: fieldPath, wildcard: true},
		},
		children: []childSpec{
			{key: "items", typ: TypeItem},
			{key: "effects", typ: TypeActiveEffect},
		},
	},
	TypeActiveEffect: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
	},
	TypeAdventure: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
			{path: []string{"background", "src"}, kind: fieldPath},
			{path: []string{"description"}, kind: fieldHTML},
		},
		children: []childSpec{
			{key: "actors", typ: TypeActor},
			{key: "items", typ: TypeItem},
			{key: "scenes", typ: TypeScene},
			{key: "journal", typ: TypeJournalEntry},
			{key: "tables", typ: TypeRollTable},
			{key: "macros", typ: TypeMacro},
			{key: "playlists", typ: TypePlaylist},
			{key: "cards", typ: TypeCards},
		},
	},
	TypeAmbientSound: {
		fields: []fieldSpec{
			{path: []string{"path"}, kind: fieldPath},
		},
	},
	TypeCard: {
		fields: []fieldSpec{
			{path: []string{"back", "img"}, kind: fieldPath},
			{path: []string{"faces", "*", "img"}, kind: fieldPath},
		},
	},
	TypeCards: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
		children: []childSpec{
			{key: "cards", typ: TypeCard},
		},
	},
	TypeChatMessage: {
		fields: []fieldSpec{
			{path: []string{"content"}, kind: fieldHTML},
			{path: []string{"sound"}, kind: fieldPath},
		},
	},
	TypeCombatant: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
	},
	TypeDrawing: {
		fields: []fieldSpec{
			{path: []string{"texture"}, kind: fieldPath},
		},
	},
	TypeItem: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
			{path: []string{"system", "description", "value"}, kind: fieldHTML},
		},
		children: []childSpec{
			{key: "effects", typ: TypeActiveEffect},
		},
	},
	TypeJournalEntry: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
		children: []childSpec{
			{key: "pages", typ: TypeJournalPage},
		},
	},
	TypeJournalPage: {
		fields: []fieldSpec{
			{path: []string{"src"}, kind: fieldPath},
			{path: []string{"text", "content"}, kind: fieldHTML},
			{path: []string{"text", "markdown"}, kind: fieldMarkdown},
		},
	},
	TypeMacro: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
	},
	TypeNote: {
		fields: []fieldSpec{
			{path: []string{"texture", "src"}, kind: fieldPath},
		},
	},
	TypePlaylist: {
		children: []childSpec{
			{key: "sounds", typ: TypePlaylistSound},
		},
	},
	TypePlaylistSound: {
		fields: []fieldSpec{
			{path: []string{"path"}, kind: fieldPath},
		},
	},
	TypeRollTable: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
		},
		children: []childSpec{
			{key: "results", typ: TypeTableResult},
		},
	},
	TypeScene: {
		fields: []fieldSpec{
			{path: []string{"background", "src"}, kind: fieldPath},
			{path: []string{"foreground"}, kind: fieldPath},
			{path: []string{"thumb"}, kind: fieldPath},
		},
		children: []childSpec{
			{key: "tokens", typ: TypeToken},
			{key: "tiles", typ: TypeTile},
			{key: "drawings", typ: TypeDrawing},
			{key: "notes", typ: TypeNote},
			{key: "sounds", typ: TypeAmbientSound},
		},
	},
	TypeTableResult: {
		fields: []fieldSpec{
			{path: []string{"img"}, kind: fieldPath},
			{path: []string{"text"}, kind: fieldHTML},
		},
	},
	TypeTile: {
		fields: []fieldSpec{
			{path: []string{"texture", "src"}, kind: fieldPath},
		},
	},
	TypeToken: {
		fields: []fieldSpec{
			{path: []string{"texture", "src"}, kind: fieldPath, wildcard: true},
		},
		children: []childSpec{
			{key: "delta", typ: TypeActor},
		},
	},
	TypeUser: {
		fields: []fieldSpec{
			{path: []string{"avatar"}, kind: fieldPath},
		},
	},
}
