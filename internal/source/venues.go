package source

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliases []byte

// VenueAlias links a Winticket venue id to the JKA venue code the HTML site
// keys its pages by.
type VenueAlias struct {
	ID   string `yaml:"id"`
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// VenueAliases is the two-source venue mapping. The embedded default covers
// the active velodromes; a file override can add or correct entries.
type VenueAliases struct {
	byID   map[string]VenueAlias
	byCode map[string]VenueAlias
}

// LoadVenueAliases reads the alias table from path, or the embedded default
// when path is empty.
func LoadVenueAliases(path string) (*VenueAliases, error) {
	data := defaultAliases
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "venues: read alias file %s", path)
		}
		data = b
	}

	var doc struct {
		Venues []VenueAlias `yaml:"venues"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "venues: unmarshal alias table")
	}

	a := &VenueAliases{
		byID:   make(map[string]VenueAlias, len(doc.Venues)),
		byCode: make(map[string]VenueAlias, len(doc.Venues)),
	}
	for _, v := range doc.Venues {
		a.byID[v.ID] = v
		a.byCode[v.Code] = v
	}
	return a, nil
}

// Code returns the JKA venue code for a Winticket venue id.
func (a *VenueAliases) Code(venueID string) (string, bool) {
	v, ok := a.byID[venueID]
	return v.Code, ok
}

// Name returns the display name for a Winticket venue id.
func (a *VenueAliases) Name(venueID string) (string, bool) {
	v, ok := a.byID[venueID]
	return v.Name, ok
}

// Len reports the number of known venues.
func (a *VenueAliases) Len() int { return len(a.byID) }
