package scanner

import (
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// User agent strings for the emulated device table.
const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaIPad    = "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	uaAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
	uaGalaxy  = "Mozilla/5.0 (Linux; Android 14; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
)

// deviceTable is the built-in emulation table, in the order devices
// lists it. Metrics follow the DevTools device descriptors.
var deviceTable = []schemas.DeviceDescriptor{
	{Name: "iphone-se", Width: 375, Height: 667, Scale: 2, Mobile: true, Touch: true, UserAgent: uaIPhone},
	{Name: "iphone-12", Width: 390, Height: 844, Scale: 3, Mobile: true, Touch: true, UserAgent: uaIPhone},
	{Name: "iphone-15", Width: 393, Height: 852, Scale: 3, Mobile: true, Touch: true, UserAgent: uaIPhone},
	{Name: "iphone-15-pro-max", Width: 430, Height: 932, Scale: 3, Mobile: true, Touch: true, UserAgent: uaIPhone},
	{Name: "pixel-5", Width: 393, Height: 851, Scale: 2.75, Mobile: true, Touch: true, UserAgent: uaAndroid},
	{Name: "pixel-7", Width: 412, Height: 915, Scale: 2.625, Mobile: true, Touch: true, UserAgent: uaAndroid},
	{Name: "galaxy-s23", Width: 360, Height: 780, Scale: 3, Mobile: true, Touch: true, UserAgent: uaGalaxy},
	{Name: "ipad", Width: 768, Height: 1024, Scale: 2, Mobile: true, Touch: true, UserAgent: uaIPad},
	{Name: "ipad-pro", Width: 1024, Height: 1366, Scale: 2, Mobile: true, Touch: true, UserAgent: uaIPad},
	{Name: "laptop", Width: 1366, Height: 768, Scale: 1},
	{Name: "desktop", Width: 1920, Height: 1080, Scale: 1},
}

// deviceByName finds a table entry, case-insensitively.
func deviceByName(name string) (schemas.DeviceDescriptor, bool) {
	name = strings.ToLower(name)
	for _, d := range deviceTable {
		if d.Name == name {
			return d, true
		}
	}
	return schemas.DeviceDescriptor{}, false
}
