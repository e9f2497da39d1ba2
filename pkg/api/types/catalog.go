package types

import "time"

type CollectionSummary struct {
	CollId      int64  `json:"coll_id"`
	TransformId string `json:"transform_id"`
	RequestId   string `json:"request_id"`

	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`

	Relation string `json:"relation"`
	Status   string `json:"status"`

	TotalFiles     int64 `json:"total_files"`
	ProcessedFiles int64 `json:"processed_files"`
	TotalBytes     int64 `json:"total_bytes,omitempty"`
	ProcessedBytes int64 `json:"processed_bytes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ContentDetail struct {
	ContentId   int64  `json:"content_id"`
	CollId      int64  `json:"coll_id"`
	TransformId string `json:"transform_id"`
	RequestId   string `json:"request_id"`

	MapId       int64 `json:"map_id"`
	SubMapId    int64 `json:"sub_map_id,omitempty"`
	DepSubMapId int64 `json:"dep_sub_map_id,omitempty"`

	ContentDepId int64 `json:"content_dep_id,omitempty"`

	Relation  string `json:"relation"`
	Status    string `json:"status"`
	Substatus int    `json:"substatus,omitempty"`

	Name  string `json:"name"`
	MinId int64  `json:"min_id"`
	MaxId int64  `json:"max_id"`

	Path     string            `json:"path,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentRegistration is the body of POST /api/contents: outputs an
// executor-side workload reports back to the catalog.
type ContentRegistration struct {
	Contents []ContentSpec `json:"contents"`
}

type ContentSpec struct {
	CollId      int64  `json:"coll_id"`
	TransformId string `json:"transform_id"`
	RequestId   string `json:"request_id"`

	MapId       int64 `json:"map_id"`
	SubMapId    int64 `json:"sub_map_id,omitempty"`
	DepSubMapId int64 `json:"dep_sub_map_id,omitempty"`

	Relation string `json:"relation"`
	Status   string `json:"status"`

	Name  string `json:"name"`
	MinId int64  `json:"min_id"`
	MaxId int64  `json:"max_id"`

	Path     string            `json:"path,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ContentRegistered struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}
