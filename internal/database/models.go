package database

import "time"

// MediaKind classifies a stored item by its source file type.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
)

// AssetKind names a derivative asset attached to a media item.
type AssetKind string

const (
	AssetKindThumb        AssetKind = "thumb"
	AssetKindContactSheet AssetKind = "contact_sheet"
)

// MediaItem is one ingested media file. The (Bucket, Item, Ext) triplet is
// unique and mirrors the on-disk location bucket/item/item.ext. Pointer
// fields are nil when the probe did not report the value.
type MediaItem struct {
	ID           string    `json:"id"`
	Bucket       string    `json:"bucket"`
	Item         string    `json:"item"`
	Ext          string    `json:"ext"`
	Kind         MediaKind `json:"kind"`
	SizeBytes    int64     `json:"sizeBytes"`
	HashSHA256   string    `json:"hashSha256,omitempty"`
	DurationSec  *int      `json:"durationSec,omitempty"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	FPS          *float64  `json:"fps,omitempty"`
	Bitrate      *int64    `json:"bitrate,omitempty"`
	CodecVideo   string    `json:"codecVideo,omitempty"`
	CodecAudio   string    `json:"codecAudio,omitempty"`
	Container    string    `json:"container,omitempty"`
	AspectRatio  string    `json:"aspectRatio,omitempty"`
	Language     string    `json:"language,omitempty"`
	HasSubtitles bool      `json:"hasSubtitles"`
	Favorite     bool      `json:"favorite"`
	Rating       *int      `json:"rating,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MediaAsset is one derivative asset row. A media item holds at most one
// asset per kind.
type MediaAsset struct {
	ID          int64     `json:"id"`
	MediaItemID string    `json:"mediaItemId"`
	Kind        AssetKind `json:"kind"`
	RelPath     string    `json:"relPath"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AssetCandidate identifies a video that the derivative-asset pipeline
// should process.
type AssetCandidate struct {
	ID       string `json:"id"`
	RelDir   string `json:"relDir"`
	FileName string `json:"fileName"`
}

// ItemListing is a paged listing of media items.
type ItemListing struct {
	Items      []MediaItem `json:"items"`
	TotalItems int         `json:"totalItems"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}
