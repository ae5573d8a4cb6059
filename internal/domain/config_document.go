package domain

import "time"

// Provenance 配置文档来源标记
type Provenance string

const (
	// ProvenanceRemote 与引擎最近一次确认的配置一致
	ProvenanceRemote Provenance = "remote_authoritative"
	// ProvenanceLocal 含有未保存的本地编辑
	ProvenanceLocal Provenance = "locally_edited"
)

// ConfigDocument is an opaque engine configuration blob plus its provenance.
//
// Revision identifies the baseline the content derives from. It is bumped on every
// successful fetch or save and is 0 only before the first fetch.
type ConfigDocument struct {
	Content    string     `json:"content"`
	Provenance Provenance `json:"provenance"`
	Revision   uint64     `json:"revision"`
	SyncedAt   time.Time  `json:"synced_at"`
}

// IsEdited 是否包含未保存的本地编辑
func (d ConfigDocument) IsEdited() bool {
	return d.Provenance == ProvenanceLocal
}
