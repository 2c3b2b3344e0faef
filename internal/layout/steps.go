package layout

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/doxynav/internal/dom"
	"golang.org/x/net/html"
)

// Step names, in execution order.
const (
	StepSearch           = "search"
	StepPrimaryTabs      = "primary-tabs"
	StepSecondaryTabs    = "secondary-tabs"
	StepResponsiveImages = "responsive-images"
	StepSideNav          = "side-nav"
)

// Page is the handle every step operates on.
type Page struct {
	Root     *html.Node
	Viewport Viewport
	Preset   Preset
}

// StepResult records what a single step did. Found is false when the step's
// target was absent and the step changed nothing.
type StepResult struct {
	Step      string `json:"step"`
	Found     bool   `json:"found"`
	Moved     int    `json:"moved"`
	Removed   int    `json:"removed"`
	Relabeled int    `json:"relabeled"`
}

// Step is one discrete transformation of the page tree.
type Step struct {
	Name  string
	Apply func(p *Page) (StepResult, error)
}

// StepsFor returns the ordered steps a preset runs.
func StepsFor(preset Preset) []Step {
	steps := []Step{
		{Name: StepSearch, Apply: moveSearchBox},
		{Name: StepPrimaryTabs, Apply: flattenPrimaryTabs},
		{Name: StepSecondaryTabs, Apply: promoteSecondaryTabs},
	}
	if preset.ResponsiveImages {
		steps = append(steps, Step{Name: StepResponsiveImages, Apply: markResponsiveImages})
	}
	return append(steps, Step{Name: StepSideNav, Apply: dropNarrowSideNav})
}

func moveSearchBox(p *Page) (StepResult, error) {
	res := StepResult{Step: StepSearch}
	box, ok := dom.ByID(p.Root, p.Preset.SearchBoxID)
	if !ok {
		return res, nil
	}
	res.Found = true

	if p.Preset.RemoveSearch {
		dom.Remove(box)
		res.Removed++
		return res, nil
	}

	// The container is looked up after the detach, so one nested in the
	// box is gone with it.
	dom.Detach(box)
	container, ok := dom.ByID(p.Root, p.Preset.SearchContainerID)
	if !ok {
		res.Removed++
		return res, nil
	}
	dom.AppendChild(container, box)
	res.Moved++
	return res, nil
}

func flattenPrimaryTabs(p *Page) (StepResult, error) {
	res := StepResult{Step: StepPrimaryTabs}
	row, ok := dom.ByID(p.Root, p.Preset.PrimaryRowID)
	if !ok {
		return res, nil
	}
	res.Found = true

	items, err := dom.QueryAll(row, ".//ul["+dom.HasClassExpr(p.Preset.TabListClass)+"]//li")
	if err != nil {
		return res, err
	}
	for _, item := range items {
		dom.Detach(item)
		if dom.Text(item) == "" {
			res.Removed++
			continue
		}
		if class, _ := dom.Attr(item, "class"); class == p.Preset.CurrentClass {
			dom.SetAttr(item, "class", p.Preset.ActiveClass)
			res.Relabeled++
		}
		// Looked up per item: a list nested in a detached item is gone.
		navList, ok := dom.ByID(p.Root, p.Preset.NavListID)
		if !ok {
			res.Removed++
			continue
		}
		dom.AppendChild(navList, item)
		res.Moved++
	}

	if dom.Remove(row) {
		res.Removed++
	}
	return res, nil
}

func promoteSecondaryTabs(p *Page) (StepResult, error) {
	res := StepResult{Step: StepSecondaryTabs}
	ref, hasRef, err := dom.First(p.Root, "//nav["+dom.HasClassExpr(p.Preset.NavbarClass)+"]")
	if err != nil {
		return res, err
	}

	for i := p.Preset.SecondaryFirst; i <= p.Preset.SecondaryLast; i++ {
		row, ok := dom.ByID(p.Root, p.Preset.SecondaryRowPrefix+strconv.Itoa(i))
		if !ok {
			continue
		}
		lists, err := dom.QueryAll(row, ".//ul["+dom.HasClassExpr(p.Preset.TabListClass)+"]")
		if err != nil {
			return res, fmt.Errorf("row %d: %w", i, err)
		}
		for _, list := range lists {
			res.Found = true
			dom.Detach(list)
			dom.SetAttr(list, "class", p.Preset.PromotedClass)
			for c := list.FirstChild; c != nil; c = c.NextSibling {
				if dom.IsElement(c, "li") && dom.HasClass(c, p.Preset.CurrentClass) {
					dom.SetAttr(c, "class", p.Preset.ActiveClass)
					res.Relabeled++
				}
			}
			if !hasRef || dom.Contains(list, ref) {
				// No anchor, or the anchor left with the list.
				res.Removed++
				continue
			}
			if dom.InsertAfter(ref, list) {
				ref = list
				if dom.Contains(p.Root, list) {
					res.Moved++
					continue
				}
			}
			res.Removed++
		}
	}
	return res, nil
}

func markResponsiveImages(p *Page) (StepResult, error) {
	res := StepResult{Step: StepResponsiveImages}
	imgs, err := dom.QueryAll(p.Root, "//img")
	if err != nil {
		return res, err
	}
	inBrand := func(n *html.Node) bool { return dom.HasClass(n, p.Preset.BrandClass) }
	for _, img := range imgs {
		res.Found = true
		if dom.HasClass(img, p.Preset.FooterClass) || dom.HasAncestor(img, inBrand) {
			continue
		}
		if dom.AddClass(img, p.Preset.ResponsiveClass) {
			res.Relabeled++
		}
	}
	return res, nil
}

func dropNarrowSideNav(p *Page) (StepResult, error) {
	res := StepResult{Step: StepSideNav}
	side, ok := dom.ByID(p.Root, p.Preset.SideNavID)
	if !ok {
		return res, nil
	}
	res.Found = true
	if p.Viewport == nil {
		return res, nil
	}
	if p.Viewport.Width() < p.Preset.NarrowWidth {
		dom.Remove(side)
		res.Removed++
	}
	return res, nil
}
