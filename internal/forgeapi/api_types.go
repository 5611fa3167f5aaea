package forgeapi

const (
	HeaderUserAgent = "User-Agent"
	HeaderAccessKey = "Access-Key"
)

// Asset is a single entry of the remote asset library listing.
// Directories are reported with a trailing "/" on Name.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// IsDirectory reports whether the asset entry denotes a directory.
func (a *Asset) IsDirectory() bool {
	return len(a.Name) > 0 && a.Name[len(a.Name)-1] == '/'
}

// ListAssetsParams are the query parameters for the asset listing API
type ListAssetsParams struct {
	Cursor string
	Limit  int
}

// ListAssetsResponse is one page of the asset listing
type ListAssetsResponse struct {
	Assets []*Asset `json:"assets"`
	Cursor string   `json:"cursor,omitempty"`
}

// AccountInfo is the response of the key validation endpoint
type AccountInfo struct {
	User        string `json:"user"`
	StorageUsed int64  `json:"storage_used"`
	StorageMax  int64  `json:"storage_max"`
}
