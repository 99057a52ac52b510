// Package model はドメインモデルを定義する。
package model

import "time"

// ResourceType は学術リソースの種別を表す。
type ResourceType string

const (
	ResourceTypeLectureNotes    ResourceType = "Lecture Notes"
	ResourceTypeTextbook        ResourceType = "Textbook"
	ResourceTypeResearchPaper   ResourceType = "Research Paper"
	ResourceTypeLabEquipment    ResourceType = "Lab Equipment"
	ResourceTypeSoftwareLicense ResourceType = "Software License"
	ResourceTypeVideoLecture    ResourceType = "Video Lecture"
	ResourceTypePDFDocument     ResourceType = "PDF Document"
	ResourceTypeOther           ResourceType = "Other"
)

// ResourceTypes は有効な全リソース種別の一覧。
var ResourceTypes = []ResourceType{
	ResourceTypeLectureNotes,
	ResourceTypeTextbook,
	ResourceTypeResearchPaper,
	ResourceTypeLabEquipment,
	ResourceTypeSoftwareLicense,
	ResourceTypeVideoLecture,
	ResourceTypePDFDocument,
	ResourceTypeOther,
}

// IsValidResourceType は与えられた文字列が有効なリソース種別かを判定する。
func IsValidResourceType(s string) bool {
	for _, t := range ResourceTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// FileMeta はリソースに添付されたファイルのメタデータを表す。
// URL・ファイル名・MIMEタイプ・サイズの4フィールドは常に揃って存在する
// （all-or-none不変条件）。ファイル未添付のリソースではFileMeta全体がnilになる。
type FileMeta struct {
	URL       string
	Name      string
	MimeType  string
	SizeBytes int64
}

// Resource は学術リソースレコードを表す。
// データストア側が所有し、アプリケーションは読み取りスナップショットを保持する。
type Resource struct {
	ID          string
	Name        string
	Type        ResourceType
	Course      string
	Year        int
	Description string
	Keywords    []string
	File        *FileMeta
	UploaderID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasFile はリソースにファイルが添付されているかを返す。
func (r *Resource) HasFile() bool {
	return r.File != nil
}
