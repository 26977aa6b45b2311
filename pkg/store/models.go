package store

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pitabwire/frame/data"
)

// Session is a saved transcription session.
type Session struct {
	data.BaseModel

	Title           string   `gorm:"type:varchar(255);not null"`
	Transcription   string   `gorm:"type:text"`
	Language        string   `gorm:"type:varchar(20)"`
	DurationSeconds int      `gorm:"default:0"`
	WordCount       int      `gorm:"default:0"`
	IsActive        bool     `gorm:"default:false"`
	Metadata        Metadata `gorm:"type:jsonb;default:'{}'"`
}

func (Session) TableName() string { return "transcription_sessions" }

// Analysis is a saved question and answer about a session transcript.
type Analysis struct {
	data.BaseModel

	SessionID     string     `gorm:"type:varchar(50);not null;index:idx_analysis_session"`
	Question      string     `gorm:"type:text;not null"`
	Answer        string     `gorm:"type:text;not null"`
	Confidence    float64    `gorm:"default:0"`
	RelatedTopics StringList `gorm:"type:jsonb;default:'[]'"`
}

func (Analysis) TableName() string { return "session_analyses" }

// Metadata holds arbitrary session attributes as a JSON object.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		*m = Metadata{}
		return nil
	}
}

// StringList is a JSON encoded list of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		*l = StringList{}
		return nil
	}
}
