package media

import "strings"

// Quality is a best-effort resolution tier parsed from free text.
type Quality string

const (
	Quality2160p   Quality = "2160p"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	QualityUnknown Quality = "Unknown"
)

var qualityMarkers = []struct {
	tokens  []string
	quality Quality
}{
	{[]string{"2160P", "4K"}, Quality2160p},
	{[]string{"1080P"}, Quality1080p},
	{[]string{"720P"}, Quality720p},
	{[]string{"480P"}, Quality480p},
}

// ParseQuality matches the first tier whose token appears in text.
func ParseQuality(text string) Quality {
	upper := strings.ToUpper(text)
	for _, m := range qualityMarkers {
		for _, token := range m.tokens {
			if strings.Contains(upper, token) {
				return m.quality
			}
		}
	}
	return QualityUnknown
}

func (q Quality) String() string {
	return string(q)
}
