package images

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Resolution is a named display resolution used for overlay canvases.
type Resolution struct {
	Name        string `json:"name"`
	AspectRatio string `json:"aspectRatio"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// MegaPixels returns the pixel count in megapixels rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Size returns the resolution as a Size.
func (r Resolution) Size() Size {
	return Size{W: float32(r.Width), H: float32(r.Height)}
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

// resolutions is keyed by lower-case name.
var resolutions = map[string]Resolution{
	"360p":  {Name: "360p", AspectRatio: "16:9", Width: 640, Height: 360},
	"vga":   {Name: "vga", AspectRatio: "4:3", Width: 640, Height: 480},
	"480p":  {Name: "480p", AspectRatio: "16:9", Width: 854, Height: 480},
	"540p":  {Name: "540p", AspectRatio: "16:9", Width: 960, Height: 540},
	"720p":  {Name: "720p", AspectRatio: "16:9", Width: 1280, Height: 720},
	"1080p": {Name: "1080p", AspectRatio: "16:9", Width: 1920, Height: 1080},
	"1440p": {Name: "1440p", AspectRatio: "16:9", Width: 2560, Height: 1440},
	"4k":    {Name: "4k", AspectRatio: "16:9", Width: 3840, Height: 2160},
}

// ResolutionByName looks up a resolution, ignoring case.
func ResolutionByName(name string) (Resolution, bool) {
	res, ok := resolutions[strings.ToLower(strings.TrimSpace(name))]
	return res, ok
}

// Resolutions returns every known resolution ordered by pixel count.
func Resolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Width*all[i].Height < all[j].Width*all[j].Height
	})
	return all
}
