package layout

import (
	"fmt"
	"regexp"
	"sort"
)

// Preset names.
const (
	PresetRelocate = "relocate"
	PresetHide     = "hide"
)

// Preset holds every selector and class string the adjuster depends on.
// The two built-in presets correspond to the two published page scripts.
type Preset struct {
	Name string `yaml:"name"`

	// Search box.
	SearchBoxID       string `yaml:"search_box_id"`
	SearchContainerID string `yaml:"search_container_id"`
	RemoveSearch      bool   `yaml:"remove_search"`

	// Primary tab row.
	PrimaryRowID string `yaml:"primary_row_id"`
	NavListID    string `yaml:"nav_list_id"`
	TabListClass string `yaml:"tab_list_class"`
	CurrentClass string `yaml:"current_class"`
	ActiveClass  string `yaml:"active_class"`

	// Secondary tab rows, ids SecondaryRowPrefix+N for N in [SecondaryFirst, SecondaryLast].
	SecondaryRowPrefix string `yaml:"secondary_row_prefix"`
	SecondaryFirst     int    `yaml:"secondary_first"`
	SecondaryLast      int    `yaml:"secondary_last"`
	NavbarClass        string `yaml:"navbar_class"`
	PromotedClass      string `yaml:"promoted_class"`

	// Images.
	ResponsiveImages bool   `yaml:"responsive_images"`
	BrandClass       string `yaml:"brand_class"`
	FooterClass      string `yaml:"footer_class"`
	ResponsiveClass  string `yaml:"responsive_class"`

	// Side navigation.
	SideNavID   string `yaml:"side_nav_id"`
	NarrowWidth int    `yaml:"narrow_width"`
}

// NarrowWidth is the viewport width below which the side navigation is dropped.
const NarrowWidth = 750

func basePreset() Preset {
	return Preset{
		SearchBoxID:        "MSearchBox",
		SearchContainerID:  "riot-searchbox",
		PrimaryRowID:       "navrow1",
		NavListID:          "riot-navlist",
		TabListClass:       "tablist",
		CurrentClass:       "current",
		ActiveClass:        "active",
		SecondaryRowPrefix: "navrow",
		SecondaryFirst:     2,
		SecondaryLast:      4,
		NavbarClass:        "navbar",
		PromotedClass:      "nav nav-tabs",
		BrandClass:         "navbar-brand",
		FooterClass:        "footer",
		ResponsiveClass:    "img-responsive",
		SideNavID:          "side-nav",
		NarrowWidth:        NarrowWidth,
	}
}

// Relocate moves the search box into the navbar container.
func Relocate() Preset {
	p := basePreset()
	p.Name = PresetRelocate
	return p
}

// Hide drops the search box, justifies the promoted rows and marks content
// images responsive.
func Hide() Preset {
	p := basePreset()
	p.Name = PresetHide
	p.RemoveSearch = true
	p.PromotedClass = "nav nav-tabs nav-justified"
	p.ResponsiveImages = true
	return p
}

var presets = map[string]func() Preset{
	PresetRelocate: Relocate,
	PresetHide:     Hide,
}

// PresetByName returns a fresh copy of a built-in preset.
func PresetByName(name string) (Preset, error) {
	fn, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (known: %v)", name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Identifiers end up inside XPath string literals.
var token = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Validate checks that ids and class names are plain tokens.
func (p Preset) Validate() error {
	tokens := map[string]string{
		"search_box_id":        p.SearchBoxID,
		"primary_row_id":       p.PrimaryRowID,
		"nav_list_id":          p.NavListID,
		"tab_list_class":       p.TabListClass,
		"current_class":        p.CurrentClass,
		"active_class":         p.ActiveClass,
		"secondary_row_prefix": p.SecondaryRowPrefix,
		"navbar_class":         p.NavbarClass,
		"side_nav_id":          p.SideNavID,
	}
	if !p.RemoveSearch {
		tokens["search_container_id"] = p.SearchContainerID
	}
	if p.ResponsiveImages {
		tokens["brand_class"] = p.BrandClass
		tokens["footer_class"] = p.FooterClass
		tokens["responsive_class"] = p.ResponsiveClass
	}
	for field, v := range tokens {
		if !token.MatchString(v) {
			return fmt.Errorf("preset %q: %s must be a plain identifier, got %q", p.Name, field, v)
		}
	}
	if p.PromotedClass == "" {
		return fmt.Errorf("preset %q: promoted_class is required", p.Name)
	}
	if p.SecondaryFirst > p.SecondaryLast {
		return fmt.Errorf("preset %q: secondary_first (%d) exceeds secondary_last (%d)", p.Name, p.SecondaryFirst, p.SecondaryLast)
	}
	if p.NarrowWidth < 0 {
		return fmt.Errorf("preset %q: narrow_width must be non-negative", p.Name)
	}
	return nil
}
