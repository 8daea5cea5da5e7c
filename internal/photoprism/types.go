package photoprism

import "time"

// UnknownYear is the Year PhotoPrism reports when the capture date is unknown.
const UnknownYear = -1

// Photo represents a PhotoPrism photo
type Photo struct {
	UID          string  `json:"UID"`
	Title        string  `json:"Title"`
	Type         string  `json:"Type"`
	TakenAt      string  `json:"TakenAt"`
	TakenAtLocal string  `json:"TakenAtLocal"`
	TakenSrc     string  `json:"TakenSrc"`
	Lat          float64 `json:"Lat"`
	Lng          float64 `json:"Lng"`
	Year         int     `json:"Year"`
	Month        int     `json:"Month"`
	Day          int     `json:"Day"`
	Country      string  `json:"Country"`
	FileName     string  `json:"FileName"`
	OriginalName string  `json:"OriginalName"` // Original filename when uploaded
	DeletedAt    string  `json:"DeletedAt,omitempty"`
}

// CaptureTime returns the UTC capture time, or nil when PhotoPrism does not
// know when the photo was taken.
func (p Photo) CaptureTime() *time.Time {
	if p.Year == UnknownYear || p.TakenAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, p.TakenAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Archived reports whether the photo has been moved to the archive.
func (p Photo) Archived() bool {
	return p.DeletedAt != ""
}
