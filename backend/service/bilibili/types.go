package bilibili

// MediaKind distinguishes the two content families the service resolves.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// MediaReference is a typed identifier extracted from free-text input.
// For short links the ID holds the original text until the resolver has
// expanded it.
type MediaReference struct {
	Kind         MediaKind `json:"type"`
	ID           string    `json:"id"`
	OriginalText string    `json:"originalUrl,omitempty"`
}

// MediaDescriptor is the fully resolved result handed to the boundary.
// DownloadURL is a signed, time-limited CDN address and must not be cached
// beyond the current session.
type MediaDescriptor struct {
	Title       string    `json:"title"`
	Cover       string    `json:"cover"`
	Duration    int       `json:"duration,omitempty"`
	Author      string    `json:"author,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	SourceType  MediaKind `json:"sourceType"`
	SourceID    string    `json:"sourceId"`
}
