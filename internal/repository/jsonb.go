package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaxLocationSamples bounds the per-event location trail; appends past the cap
// drop the oldest samples.
const MaxLocationSamples = 100

type LocationSample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

type LocationTrail []LocationSample

// Append adds a sample and trims the trail to MaxLocationSamples, oldest first.
func (l LocationTrail) Append(s LocationSample) LocationTrail {
	out := append(l, s)
	if len(out) > MaxLocationSamples {
		out = out[len(out)-MaxLocationSamples:]
	}
	return out
}

type EvidenceRef struct {
	Kind       string    `json:"kind"` // photo or signature
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

type Evidence []EvidenceRef

type IssueReport struct {
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	ReportedAt  time.Time `json:"reported_at"`
}

type IssueReports []IssueReport

type Signature struct {
	Role     string    `json:"role"` // donor, volunteer or ngo
	SignedBy string    `json:"signed_by"`
	SignedAt time.Time `json:"signed_at"`
	Ref      string    `json:"ref"`
}

type Signatures []Signature

func jsonbValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonbScan(src, dest interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dest)
	case string:
		return json.Unmarshal([]byte(data), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (l LocationTrail) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonbValue([]LocationSample(l))
}

func (l *LocationTrail) Scan(src interface{}) error {
	return jsonbScan(src, (*[]LocationSample)(l))
}

func (e Evidence) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return jsonbValue([]EvidenceRef(e))
}

func (e *Evidence) Scan(src interface{}) error {
	return jsonbScan(src, (*[]EvidenceRef)(e))
}

func (i IssueReports) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	return jsonbValue([]IssueReport(i))
}

func (i *IssueReports) Scan(src interface{}) error {
	return jsonbScan(src, (*[]IssueReport)(i))
}

func (s Signatures) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return jsonbValue([]Signature(s))
}

func (s *Signatures) Scan(src interface{}) error {
	return jsonbScan(src, (*[]Signature)(s))
}
